package natives

import "fmt"

func argError(name string, want, got int) error {
	return fmt.Errorf("%s() expects %d argument(s), got %d", name, want, got)
}

func typeError(name string) error {
	return fmt.Errorf("%s() requires numeric arguments", name)
}
