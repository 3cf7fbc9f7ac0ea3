package runtime

import (
	"strconv"

	"github.com/emberlang/ember/scanner"
)

// Precedence is the Pratt-parser precedence ladder, low to high.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

type parseFn func(p *parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// maxLocals/maxUpvalues mirror spec.md's 256-entry caps (a one-byte index or
// slot number); maxArgs/maxParams are the 255-entry call and parameter caps.
const (
	maxLocals    = 256
	maxUpvalues  = 256
	maxArgs      = 255
	maxParams    = 255
)

// local is a declared-but-maybe-not-yet-initialized local variable slot.
// Depth -1 means "declared, initializer still running" — reading it in that
// state is the "read in its own initializer" error.
type local struct {
	name       scanner.Token
	depth      int
	isCaptured bool
}

// upvalueRef is a closure's view of one variable it captured: either the
// enclosing function's local slot `index`, or the enclosing function's own
// upvalue slot `index`.
type upvalueRef struct {
	index   int
	isLocal bool
}

// functionType distinguishes the kind of function body a compiler instance
// is building, since top-level script, methods and initializers each treat
// slot 0 and bare `return` slightly differently.
type functionType int

const (
	typeFunction functionType = iota
	typeInitializer
	typeMethod
	typeScript
)

// compilerState is per-function compiler state: the enclosing compiler
// (nil at the root), the function being built, its locals/upvalues, and the
// current scope depth (0 = global). It is also a GC root while live: the
// VM walks the chain via `enclosing` to mark every in-progress function.
type compilerState struct {
	enclosing *compilerState
	function  *ObjFunction
	fnType    functionType

	locals     [maxLocals]local
	localCount int
	upvalues   [maxUpvalues]upvalueRef
	scopeDepth int
}

// classCompiler tracks the class currently being compiled, for `this` and
// `super` resolution and to know whether a bare `super` is available.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

type parser struct {
	vm      *VM
	scanner *scanner.Scanner
	source  string

	current  scanner.Token
	previous scanner.Token

	hadError  bool
	panicMode bool
	errors    []*CompileError

	compiler *compilerState
	class    *classCompiler
}

func newParser(vm *VM, source string) *parser {
	p := &parser{vm: vm, scanner: scanner.New(source), source: source}
	p.pushCompiler(typeScript, "")
	return p
}

// Compile turns source into a top-level function, the single-pass way:
// bytecode is emitted directly while parsing, there is no intermediate AST.
// It returns a nil function if any error occurred during compilation.
func Compile(vm *VM, source string) (*ObjFunction, []*CompileError) {
	p := newParser(vm, source)
	p.advance()
	for !p.matchTok(scanner.EOF) {
		p.declaration()
	}
	p.consume(scanner.EOF, "Expect end of expression.")
	fn := p.endCompiler()
	if p.hadError {
		return nil, p.errors
	}
	return fn, nil
}

// --- token stream plumbing ---

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.ScanToken()
		if p.current.Type != scanner.Error {
			break
		}
		p.errorAtCurrent(p.current.Lexeme(p.source))
	}
}

func (p *parser) check(t scanner.TokenType) bool { return p.current.Type == t }

func (p *parser) matchTok(t scanner.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(t scanner.TokenType, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *parser) errorAtCurrent(message string) { p.errorAt(p.current, message) }
func (p *parser) error(message string)          { p.errorAt(p.previous, message) }

func (p *parser) errorAt(tok scanner.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	ce := &CompileError{Line: tok.Line, Message: message}
	if tok.Type == scanner.EOF {
		ce.AtEnd = true
	} else if tok.Type != scanner.Error {
		ce.Lexeme = tok.Lexeme(p.source)
	}
	p.errors = append(p.errors, ce)
	p.vm.reportCompileError(ce)
}

// synchronize resynchronizes after a parse error at the next statement
// boundary. Unlike a C port that compares the current token kind against an
// EOF sentinel borrowed from the host's char type, this checks the scanner's
// own EOF token kind directly (spec.md §9's corrected Open Question).
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Type != scanner.EOF {
		if p.previous.Type == scanner.Semicolon {
			return
		}
		switch p.current.Type {
		case scanner.Class, scanner.Fun, scanner.Var, scanner.For,
			scanner.If, scanner.While, scanner.Print, scanner.Return:
			return
		}
		p.advance()
	}
}

// --- chunk emission ---

func (p *parser) currentChunk() *Chunk { return p.compiler.function.Chunk }

func (p *parser) emitByte(b byte) { p.currentChunk().Write(b, p.previous.Line) }
func (p *parser) emitOp(op OpCode) { p.currentChunk().WriteOp(op, p.previous.Line) }

func (p *parser) emitOpByte(op OpCode, operand byte) {
	p.emitOp(op)
	p.emitByte(operand)
}

func (p *parser) emitOps(op1, op2 OpCode) {
	p.emitOp(op1)
	p.emitOp(op2)
}

func (p *parser) emitLoop(loopStart int) {
	p.emitOp(OpLoop)
	offset := len(p.currentChunk().Code) - loopStart + 2
	if offset > 65535 {
		p.error("Body of loop too large.")
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset & 0xff))
}

// emitJump emits a jump opcode with a 16-bit placeholder operand and returns
// the offset of the first operand byte, for patchJump to fill in later.
func (p *parser) emitJump(op OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.currentChunk().Code) - 2
}

func (p *parser) patchJump(offset int) {
	jump := len(p.currentChunk().Code) - offset - 2
	if jump > 65535 {
		p.error("Too much code to jump over.")
	}
	p.currentChunk().Code[offset] = byte(jump >> 8)
	p.currentChunk().Code[offset+1] = byte(jump & 0xff)
}

func (p *parser) emitReturn() {
	if p.compiler.fnType == typeInitializer {
		p.emitOpByte(OpGetLocal, 0)
	} else {
		p.emitOp(OpNil)
	}
	p.emitOp(OpReturn)
}

func (p *parser) makeConstant(v Value) byte {
	idx, err := p.currentChunk().AddConstant(p.vm, v)
	if err != nil {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (p *parser) emitConstant(v Value) {
	p.emitOpByte(OpConstant, p.makeConstant(v))
}

// --- compiler (scope) stack ---

func (p *parser) pushCompiler(fnType functionType, name string) {
	c := &compilerState{enclosing: p.compiler, fnType: fnType}
	c.function = p.vm.newFunction()
	p.compiler = c
	p.vm.currentCompiler = c
	if fnType != typeScript {
		c.function.Name = p.vm.internString(name)
	}
	// Slot 0 is reserved: for methods/initializers it is the receiver bound
	// to `this`; everywhere else it is an empty name nothing can reference.
	slot0 := &c.locals[0]
	slot0.depth = 0
	slot0.isCaptured = false
	if fnType == typeMethod || fnType == typeInitializer {
		slot0.name = scanner.Synthetic(scanner.This, "this")
	} else {
		slot0.name = scanner.Token{Type: scanner.Identifier, Length: 0}
	}
	c.localCount = 1
}

// endCompiler finishes the current function, emits its implicit return, and
// pops back to the enclosing compiler (nil at the root).
func (p *parser) endCompiler() *ObjFunction {
	p.emitReturn()
	fn := p.compiler.function
	p.compiler = p.compiler.enclosing
	p.vm.currentCompiler = p.compiler
	return fn
}

func (p *parser) beginScope() { p.compiler.scopeDepth++ }

func (p *parser) endScope() {
	p.compiler.scopeDepth--
	c := p.compiler
	for c.localCount > 0 && c.locals[c.localCount-1].depth > c.scopeDepth {
		if c.locals[c.localCount-1].isCaptured {
			p.emitOp(OpCloseUpvalue)
		} else {
			p.emitOp(OpPop)
		}
		c.localCount--
	}
}

// --- identifiers, locals, upvalues ---

func (p *parser) identifierConstant(tok scanner.Token) byte {
	return p.makeConstant(ObjectValue(p.vm.internString(tok.Lexeme(p.source))))
}

func identifiersEqual(a, b scanner.Token, source string) bool {
	if a.Length != b.Length {
		return false
	}
	return a.Lexeme(source) == b.Lexeme(source)
}

func (p *parser) resolveLocal(c *compilerState, name scanner.Token) int {
	for i := c.localCount - 1; i >= 0; i-- {
		local := &c.locals[i]
		if identifiersEqual(name, local.name, p.source) {
			if local.depth == -1 {
				p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (p *parser) addUpvalue(c *compilerState, index int, isLocal bool) int {
	count := c.function.UpvalueCount
	for i := 0; i < count; i++ {
		uv := &c.upvalues[i]
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if count == maxUpvalues {
		p.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues[count] = upvalueRef{index: index, isLocal: isLocal}
	c.function.UpvalueCount++
	return count
}

func (p *parser) resolveUpvalue(c *compilerState, name scanner.Token) int {
	if c.enclosing == nil {
		return -1
	}
	if local := p.resolveLocal(c.enclosing, name); local != -1 {
		c.enclosing.locals[local].isCaptured = true
		return p.addUpvalue(c, local, true)
	}
	if up := p.resolveUpvalue(c.enclosing, name); up != -1 {
		return p.addUpvalue(c, up, false)
	}
	return -1
}

func (p *parser) addLocal(name scanner.Token) {
	if p.compiler.localCount == maxLocals {
		p.error("Too many local variables in function.")
		return
	}
	c := p.compiler
	c.locals[c.localCount] = local{name: name, depth: -1}
	c.localCount++
}

func (p *parser) declareVariable() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	name := p.previous
	c := p.compiler
	// Walk backward from the newest local: a duplicate name can only exist
	// in the current scope, so stop at the first local from an outer one.
	// (A sibling Lox port in the field steps this loop with i++ while
	// walking backwards, which never terminates correctly — spec.md §9's
	// second corrected Open Question — so this walks with i-- instead.)
	for i := c.localCount - 1; i >= 0; i-- {
		l := &c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if identifiersEqual(name, l.name, p.source) {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *parser) parseVariable(errorMessage string) byte {
	p.consume(scanner.Identifier, errorMessage)
	p.declareVariable()
	if p.compiler.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous)
}

func (p *parser) markInitialized() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	p.compiler.locals[p.compiler.localCount-1].depth = p.compiler.scopeDepth
}

func (p *parser) defineVariable(global byte) {
	if p.compiler.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitOpByte(OpDefineGlobal, global)
}

func (p *parser) argumentList() byte {
	argCount := 0
	if !p.check(scanner.RightParen) {
		for {
			p.expression()
			if argCount == maxArgs {
				p.error("Can't have more than 255 arguments.")
			}
			argCount++
			if !p.matchTok(scanner.Comma) {
				break
			}
		}
	}
	p.consume(scanner.RightParen, "Expect ')' after arguments.")
	return byte(argCount)
}

// --- expressions ---

func (p *parser) parsePrecedence(prec Precedence) {
	p.advance()
	rule := getRule(p.previous.Type)
	if rule.prefix == nil {
		p.error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	rule.prefix(p, canAssign)

	for prec <= getRule(p.current.Type).precedence {
		p.advance()
		infix := getRule(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.matchTok(scanner.Equal) {
		p.error("Invalid assignment target.")
	}
}

func (p *parser) expression() { p.parsePrecedence(PrecAssignment) }

func grouping(p *parser, _ bool) {
	p.expression()
	p.consume(scanner.RightParen, "Expect ')' after expression.")
}

func number(p *parser, _ bool) {
	text := p.previous.Lexeme(p.source)
	n, _ := strconv.ParseFloat(text, 64)
	p.emitConstant(NumberValue(n))
}

func stringLiteral(p *parser, _ bool) {
	lex := p.previous.Lexeme(p.source)
	s := lex[1 : len(lex)-1] // strip surrounding quotes
	p.emitConstant(ObjectValue(p.vm.internString(s)))
}

func literal(p *parser, _ bool) {
	switch p.previous.Type {
	case scanner.False:
		p.emitOp(OpFalse)
	case scanner.Nil:
		p.emitOp(OpNil)
	case scanner.True:
		p.emitOp(OpTrue)
	}
}

func unary(p *parser, _ bool) {
	opType := p.previous.Type
	p.parsePrecedence(PrecUnary)
	switch opType {
	case scanner.Bang:
		p.emitOp(OpNot)
	case scanner.Minus:
		p.emitOp(OpNegate)
	}
}

func binary(p *parser, _ bool) {
	opType := p.previous.Type
	rule := getRule(opType)
	p.parsePrecedence(rule.precedence + 1)

	switch opType {
	case scanner.BangEqual:
		p.emitOps(OpEqual, OpNot)
	case scanner.EqualEqual:
		p.emitOp(OpEqual)
	case scanner.Greater:
		p.emitOp(OpGreater)
	case scanner.GreaterEqual:
		p.emitOps(OpLess, OpNot)
	case scanner.Less:
		p.emitOp(OpLess)
	case scanner.LessEqual:
		p.emitOps(OpGreater, OpNot)
	case scanner.Plus:
		p.emitOp(OpAdd)
	case scanner.Minus:
		p.emitOp(OpSubtract)
	case scanner.Star:
		p.emitOp(OpMultiply)
	case scanner.Slash:
		p.emitOp(OpDivide)
	}
}

func call(p *parser, _ bool) {
	argCount := p.argumentList()
	p.emitOpByte(OpCall, argCount)
}

func dot(p *parser, canAssign bool) {
	p.consume(scanner.Identifier, "Expect property name after '.'.")
	name := p.identifierConstant(p.previous)

	if canAssign && p.matchTok(scanner.Equal) {
		p.expression()
		p.emitOpByte(OpSetProperty, name)
	} else if p.matchTok(scanner.LeftParen) {
		argCount := p.argumentList()
		p.emitOpByte(OpInvoke, name)
		p.emitByte(argCount)
	} else {
		p.emitOpByte(OpGetProperty, name)
	}
}

func and_(p *parser, _ bool) {
	endJump := p.emitJump(OpJumpIfFalse)
	p.emitOp(OpPop)
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

func or_(p *parser, _ bool) {
	elseJump := p.emitJump(OpJumpIfFalse)
	endJump := p.emitJump(OpJump)
	p.patchJump(elseJump)
	p.emitOp(OpPop)
	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func (p *parser) namedVariable(name scanner.Token, canAssign bool) {
	var getOp, setOp OpCode
	arg := p.resolveLocal(p.compiler, name)
	if arg != -1 {
		getOp, setOp = OpGetLocal, OpSetLocal
	} else if arg = p.resolveUpvalue(p.compiler, name); arg != -1 {
		getOp, setOp = OpGetUpvalue, OpSetUpvalue
	} else {
		arg = int(p.identifierConstant(name))
		getOp, setOp = OpGetGlobal, OpSetGlobal
	}

	if canAssign && p.matchTok(scanner.Equal) {
		p.expression()
		p.emitOpByte(setOp, byte(arg))
	} else {
		p.emitOpByte(getOp, byte(arg))
	}
}

func variable(p *parser, canAssign bool) { p.namedVariable(p.previous, canAssign) }

func this_(p *parser, _ bool) {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	variable(p, false)
}

func super_(p *parser, _ bool) {
	if p.class == nil {
		p.error("Can't use 'super' outside of a class.")
	} else if !p.class.hasSuperclass {
		p.error("Can't use 'super' in a class with no superclass.")
	}

	p.consume(scanner.Dot, "Expect '.' after 'super'.")
	p.consume(scanner.Identifier, "Expect superclass method name.")
	name := p.identifierConstant(p.previous)

	p.namedVariable(thisToken(), false)
	if p.matchTok(scanner.LeftParen) {
		argCount := p.argumentList()
		p.namedVariable(superToken(), false)
		p.emitOpByte(OpSuperInvoke, name)
		p.emitByte(argCount)
	} else {
		p.namedVariable(superToken(), false)
		p.emitOpByte(OpGetSuper, name)
	}
}

// thisToken/superToken stand in for the scanner tokens that would have named
// the synthetic locals bound to `this` and `super` — used whenever the
// compiler itself needs to read them, as opposed to the user's source doing
// so via the `this`/`super` keywords above.
func thisToken() scanner.Token  { return scanner.Synthetic(scanner.This, "this") }
func superToken() scanner.Token { return scanner.Synthetic(scanner.Super, "super") }

var rules [64]parseRule

func init() {
	rules[scanner.LeftParen] = parseRule{grouping, call, PrecCall}
	rules[scanner.Dot] = parseRule{nil, dot, PrecCall}
	rules[scanner.Minus] = parseRule{unary, binary, PrecTerm}
	rules[scanner.Plus] = parseRule{nil, binary, PrecTerm}
	rules[scanner.Slash] = parseRule{nil, binary, PrecFactor}
	rules[scanner.Star] = parseRule{nil, binary, PrecFactor}
	rules[scanner.Bang] = parseRule{unary, nil, PrecNone}
	rules[scanner.BangEqual] = parseRule{nil, binary, PrecEquality}
	rules[scanner.EqualEqual] = parseRule{nil, binary, PrecEquality}
	rules[scanner.Greater] = parseRule{nil, binary, PrecComparison}
	rules[scanner.GreaterEqual] = parseRule{nil, binary, PrecComparison}
	rules[scanner.Less] = parseRule{nil, binary, PrecComparison}
	rules[scanner.LessEqual] = parseRule{nil, binary, PrecComparison}
	rules[scanner.Identifier] = parseRule{variable, nil, PrecNone}
	rules[scanner.String] = parseRule{stringLiteral, nil, PrecNone}
	rules[scanner.Number] = parseRule{number, nil, PrecNone}
	rules[scanner.And] = parseRule{nil, and_, PrecAnd}
	rules[scanner.False] = parseRule{literal, nil, PrecNone}
	rules[scanner.Nil] = parseRule{literal, nil, PrecNone}
	rules[scanner.Or] = parseRule{nil, or_, PrecOr}
	rules[scanner.True] = parseRule{literal, nil, PrecNone}
	rules[scanner.This] = parseRule{this_, nil, PrecNone}
	rules[scanner.Super] = parseRule{super_, nil, PrecNone}
}

func getRule(t scanner.TokenType) parseRule { return rules[t] }

// --- statements ---

func (p *parser) declaration() {
	switch {
	case p.matchTok(scanner.Class):
		p.classDeclaration()
	case p.matchTok(scanner.Fun):
		p.funDeclaration()
	case p.matchTok(scanner.Var):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *parser) statement() {
	switch {
	case p.matchTok(scanner.Print):
		p.printStatement()
	case p.matchTok(scanner.For):
		p.forStatement()
	case p.matchTok(scanner.If):
		p.ifStatement()
	case p.matchTok(scanner.Return):
		p.returnStatement()
	case p.matchTok(scanner.While):
		p.whileStatement()
	case p.matchTok(scanner.LeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) block() {
	for !p.check(scanner.RightBrace) && !p.check(scanner.EOF) {
		p.declaration()
	}
	p.consume(scanner.RightBrace, "Expect '}' after block.")
}

func (p *parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")
	if p.matchTok(scanner.Equal) {
		p.expression()
	} else {
		p.emitOp(OpNil)
	}
	p.consume(scanner.Semicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(scanner.Semicolon, "Expect ';' after expression.")
	p.emitOp(OpPop)
}

func (p *parser) printStatement() {
	p.expression()
	p.consume(scanner.Semicolon, "Expect ';' after value.")
	p.emitOp(OpPrint)
}

func (p *parser) ifStatement() {
	p.consume(scanner.LeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(scanner.RightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(OpJumpIfFalse)
	p.emitOp(OpPop)
	p.statement()

	elseJump := p.emitJump(OpJump)
	p.patchJump(thenJump)
	p.emitOp(OpPop)

	if p.matchTok(scanner.Else) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := len(p.currentChunk().Code)
	p.consume(scanner.LeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(scanner.RightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(OpJumpIfFalse)
	p.emitOp(OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(OpPop)
}

func (p *parser) forStatement() {
	p.beginScope()
	p.consume(scanner.LeftParen, "Expect '(' after 'for'.")
	switch {
	case p.matchTok(scanner.Semicolon):
		// no initializer
	case p.matchTok(scanner.Var):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.currentChunk().Code)
	exitJump := -1
	if !p.matchTok(scanner.Semicolon) {
		p.expression()
		p.consume(scanner.Semicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(OpJumpIfFalse)
		p.emitOp(OpPop)
	}

	if !p.matchTok(scanner.RightParen) {
		bodyJump := p.emitJump(OpJump)
		incrementStart := len(p.currentChunk().Code)
		p.expression()
		p.emitOp(OpPop)
		p.consume(scanner.RightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(OpPop)
	}
	p.endScope()
}

func (p *parser) returnStatement() {
	if p.compiler.fnType == typeScript {
		p.error("Can't return from top-level code.")
	}
	if p.matchTok(scanner.Semicolon) {
		p.emitReturn()
		return
	}
	if p.compiler.fnType == typeInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(scanner.Semicolon, "Expect ';' after return value.")
	p.emitOp(OpReturn)
}

func (p *parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	p.markInitialized()
	p.compileFunctionBody(typeFunction, p.previous)
	p.defineVariable(global)
}

// compileFunctionBody is function() reworked to also emit the per-upvalue
// (isLocal, index) operand pairs OP_CLOSURE needs, which requires holding
// onto the child compiler's upvalue table after endCompiler pops it.
func (p *parser) compileFunctionBody(fnType functionType, nameTok scanner.Token) {
	name := nameTok.Lexeme(p.source)
	p.pushCompiler(fnType, name)
	child := p.compiler
	p.beginScope()

	p.consume(scanner.LeftParen, "Expect '(' after function name.")
	if !p.check(scanner.RightParen) {
		for {
			child.function.Arity++
			if child.function.Arity > maxParams {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := p.parseVariable("Expect parameter name.")
			p.defineVariable(constant)
			if !p.matchTok(scanner.Comma) {
				break
			}
		}
	}
	p.consume(scanner.RightParen, "Expect ')' after parameters.")
	p.consume(scanner.LeftBrace, "Expect '{' before function body.")
	p.block()

	fn := p.endCompiler()
	idx := p.makeConstant(ObjectValue(fn))
	p.emitOpByte(OpClosure, idx)
	for i := 0; i < fn.UpvalueCount; i++ {
		if child.upvalues[i].isLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(byte(child.upvalues[i].index))
	}
}

func (p *parser) method() {
	p.consume(scanner.Identifier, "Expect method name.")
	name := p.previous
	constant := p.identifierConstant(name)

	fnType := typeMethod
	if name.Lexeme(p.source) == "init" {
		fnType = typeInitializer
	}
	p.compileFunctionBody(fnType, name)
	p.emitOpByte(OpMethod, constant)
}

func (p *parser) classDeclaration() {
	p.consume(scanner.Identifier, "Expect class name.")
	className := p.previous
	nameConstant := p.identifierConstant(className)
	p.declareVariable()

	p.emitOpByte(OpClass, nameConstant)
	p.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: p.class}
	p.class = cc

	if p.matchTok(scanner.Less) {
		p.consume(scanner.Identifier, "Expect superclass name.")
		variable(p, false)
		if identifiersEqual(className, p.previous, p.source) {
			p.error("A class can't inherit from itself.")
		}

		p.beginScope()
		p.addLocal(superToken())
		p.defineVariable(0)

		p.namedVariable(className, false)
		p.emitOp(OpInherit)
		cc.hasSuperclass = true
	}

	p.namedVariable(className, false)
	p.consume(scanner.LeftBrace, "Expect '{' before class body.")
	for !p.check(scanner.RightBrace) && !p.check(scanner.EOF) {
		p.method()
	}
	p.consume(scanner.RightBrace, "Expect '}' after class body.")
	p.emitOp(OpPop)

	if cc.hasSuperclass {
		p.endScope()
	}
	p.class = p.class.enclosing
}
