package preprocessor

import "strings"

// DirectiveHandler receives the directives that carry meaning beyond
// the preprocessor itself.
type DirectiveHandler interface {
	HandleError(loc Location, msg string)
	HandlePragma(loc Location, name, value string, stdgl bool)
	HandleExtension(loc Location, name, behavior string)
	HandleVersion(loc Location, version int)
}

// conditionalBlock is one entry of the #if stack.
type conditionalBlock struct {
	typ      string // "if", "ifdef", or "ifndef", for diagnostics
	location Location

	// skipBlock: the whole block lives inside a skipped outer group.
	skipBlock bool
	// skipGroup: the current group's condition was false (or a
	// previous group was already taken).
	skipGroup bool
	// foundElseGroup: an #else has been seen.
	foundElseGroup bool
	// foundValidGroup: some group's condition has been true.
	foundValidGroup bool
}

// DirectiveParser is the stage above the Tokenizer: it interprets
// directive lines and suppresses tokens inside excluded conditional
// groups. Tokens it returns are ready for macro expansion.
type DirectiveParser struct {
	tokenizer *Tokenizer
	macros    MacroSet
	diag      Sink
	handler   DirectiveHandler
	maxDepth  int

	conditionals []conditionalBlock

	pastFirstStatement      bool
	seenNonPreprocessorToken bool
	shaderVersion           int
}

// NewDirectiveParser creates the directive stage. maxDepth bounds
// macro expansion in directive expressions; zero selects the default.
func NewDirectiveParser(tokenizer *Tokenizer, macros MacroSet, diag Sink, handler DirectiveHandler, maxDepth int) *DirectiveParser {
	return &DirectiveParser{
		tokenizer:     tokenizer,
		macros:        macros,
		diag:          diag,
		handler:       handler,
		maxDepth:      maxDepth,
		shaderVersion: 100,
	}
}

// ShaderVersion returns the version declared by #version, default 100.
func (d *DirectiveParser) ShaderVersion() int {
	return d.shaderVersion
}

func isEOD(t Token) bool {
	return t.Kind == TokenNewline || t.Kind == TokenEOF
}

func skipUntilEOD(lexer Lexer, t *Token) {
	for !isEOD(*t) {
		*t = lexer.Lex()
	}
}

func (d *DirectiveParser) skipping() bool {
	if len(d.conditionals) == 0 {
		return false
	}
	block := &d.conditionals[len(d.conditionals)-1]
	return block.skipBlock || block.skipGroup
}

// Lex implements Lexer. Directive lines are consumed and interpreted;
// only ordinary tokens (and the final EOF) reach the caller.
func (d *DirectiveParser) Lex() Token {
	for {
		token := d.tokenizer.Lex()

		if token.Kind == TokenHash {
			d.parseDirective(&token)
			d.pastFirstStatement = true
		} else if !isEOD(token) {
			d.seenNonPreprocessorToken = true
		}

		if token.Kind == TokenEOF {
			if len(d.conditionals) > 0 {
				block := d.conditionals[len(d.conditionals)-1]
				d.diag.Report(DiagConditionalUnterminated, block.location, block.typ)
			}
			return token
		}

		if d.skipping() || token.Kind == TokenNewline || token.Kind == TokenHash {
			continue
		}

		d.pastFirstStatement = true
		return token
	}
}

func (d *DirectiveParser) parseDirective(token *Token) {
	*token = d.tokenizer.Lex()
	if isEOD(*token) {
		// Empty directive.
		return
	}

	name := ""
	if token.Kind == TokenIdentifier {
		name = token.Text
	}

	// Inside an excluded block only conditional directives matter.
	if d.skipping() {
		switch name {
		case "if", "ifdef", "ifndef", "else", "elif", "endif":
		default:
			skipUntilEOD(d.tokenizer, token)
			return
		}
	}

	switch name {
	case "define":
		d.parseDefine(token)
	case "undef":
		d.parseUndef(token)
	case "if", "ifdef", "ifndef":
		d.parseConditionalIf(token, name)
	case "else":
		d.parseElse(token)
	case "elif":
		d.parseElif(token)
	case "endif":
		d.parseEndif(token)
	case "error":
		d.parseError(token)
	case "pragma":
		d.parsePragma(token)
	case "extension":
		d.parseExtension(token)
	case "version":
		d.parseVersion(token)
	case "line":
		d.parseLine(token)
	default:
		d.diag.Report(DiagDirectiveInvalidName, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
		return
	}

	skipUntilEOD(d.tokenizer, token)
	if token.Kind == TokenEOF {
		d.diag.Report(DiagEOFInDirective, token.Location, token.Text)
	}
}

func isMacroNameReserved(name string) bool {
	return strings.HasPrefix(name, "GL_")
}

func hasDoubleUnderscores(name string) bool {
	return strings.Contains(name, "__")
}

func (d *DirectiveParser) parseDefine(token *Token) {
	*token = d.tokenizer.Lex()
	if token.Kind != TokenIdentifier {
		d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
		return
	}
	if existing, ok := d.macros[token.Text]; ok && existing.Predefined {
		d.diag.Report(DiagMacroPredefinedRedefined, token.Location, token.Text)
		return
	}
	if isMacroNameReserved(token.Text) {
		d.diag.Report(DiagMacroNameReserved, token.Location, token.Text)
		return
	}
	// Double underscores are allowed but warned about.
	if hasDoubleUnderscores(token.Text) {
		d.diag.Report(DiagWarningMacroNameReserved, token.Location, token.Text)
	}

	macro := &Macro{Name: token.Text, Kind: MacroObject}

	*token = d.tokenizer.Lex()
	if token.Kind == TokenLeftParen && !token.LeadingSpace {
		// Function-like macro: collect parameter names.
		macro.Kind = MacroFunction
		for {
			*token = d.tokenizer.Lex()
			if token.Kind != TokenIdentifier {
				break
			}
			for _, p := range macro.Parameters {
				if p == token.Text {
					d.diag.Report(DiagMacroDuplicateParameterNames, token.Location, token.Text)
					return
				}
			}
			macro.Parameters = append(macro.Parameters, token.Text)

			*token = d.tokenizer.Lex()
			if token.Kind != TokenComma {
				break
			}
		}
		if token.Kind != TokenRightParen {
			d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
			return
		}
		*token = d.tokenizer.Lex()
	}

	for !isEOD(*token) {
		// Locations are dropped from the replacement list so macro
		// bodies compare by content alone.
		t := *token
		t.Location = Location{}
		macro.Replacement = append(macro.Replacement, t)
		*token = d.tokenizer.Lex()
	}

	if len(macro.Replacement) > 0 {
		// Whitespace before the replacement list is not part of it.
		macro.Replacement[0].LeadingSpace = false
	}

	if existing, ok := d.macros[macro.Name]; ok && !macro.Equals(existing) {
		d.diag.Report(DiagMacroRedefined, token.Location, macro.Name)
		return
	}
	d.macros[macro.Name] = macro
}

func (d *DirectiveParser) parseUndef(token *Token) {
	*token = d.tokenizer.Lex()
	if token.Kind != TokenIdentifier {
		d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
		return
	}

	if macro, ok := d.macros[token.Text]; ok {
		switch {
		case macro.Predefined:
			d.diag.Report(DiagMacroPredefinedUndefined, token.Location, token.Text)
			return
		case macro.ExpansionCount > 0:
			d.diag.Report(DiagMacroUndefinedWhileInvoked, token.Location, token.Text)
			return
		default:
			delete(d.macros, token.Text)
		}
	}

	*token = d.tokenizer.Lex()
	if !isEOD(*token) {
		d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
	}
}

func (d *DirectiveParser) parseConditionalIf(token *Token, typ string) {
	block := conditionalBlock{typ: typ, location: token.Location}

	if d.skipping() {
		// Inside a skipped group the whole nested block is skipped
		// and its expression is not evaluated.
		skipUntilEOD(d.tokenizer, token)
		block.skipBlock = true
	} else {
		var expression int
		switch typ {
		case "if":
			expression = d.parseExpressionIf(token)
		case "ifdef":
			expression = d.parseExpressionIfdef(token)
		case "ifndef":
			expression = 1 - d.parseExpressionIfdef(token)
		}
		block.skipGroup = expression == 0
		block.foundValidGroup = expression != 0
	}

	d.conditionals = append(d.conditionals, block)
}

func (d *DirectiveParser) parseElse(token *Token) {
	if len(d.conditionals) == 0 {
		d.diag.Report(DiagConditionalElseWithoutIf, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
		return
	}
	block := &d.conditionals[len(d.conditionals)-1]
	if block.skipBlock {
		skipUntilEOD(d.tokenizer, token)
		return
	}
	if block.foundElseGroup {
		d.diag.Report(DiagConditionalElseAfterElse, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
		return
	}

	block.foundElseGroup = true
	block.skipGroup = block.foundValidGroup
	block.foundValidGroup = true

	*token = d.tokenizer.Lex()
	if !isEOD(*token) {
		d.diag.Report(DiagConditionalUnexpectedToken, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
	}
}

func (d *DirectiveParser) parseElif(token *Token) {
	if len(d.conditionals) == 0 {
		d.diag.Report(DiagConditionalElifWithoutIf, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
		return
	}
	block := &d.conditionals[len(d.conditionals)-1]
	if block.skipBlock {
		skipUntilEOD(d.tokenizer, token)
		return
	}
	if block.foundElseGroup {
		d.diag.Report(DiagConditionalElifAfterElse, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
		return
	}
	if block.foundValidGroup {
		// A previous group was taken: skip without evaluating.
		block.skipGroup = true
		skipUntilEOD(d.tokenizer, token)
		return
	}

	expression := d.parseExpressionIf(token)
	block.skipGroup = expression == 0
	block.foundValidGroup = expression != 0
}

func (d *DirectiveParser) parseEndif(token *Token) {
	if len(d.conditionals) == 0 {
		d.diag.Report(DiagConditionalEndifWithoutIf, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
		return
	}
	d.conditionals = d.conditionals[:len(d.conditionals)-1]

	*token = d.tokenizer.Lex()
	if !isEOD(*token) {
		d.diag.Report(DiagConditionalUnexpectedToken, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
	}
}

func (d *DirectiveParser) parseError(token *Token) {
	loc := token.Location
	var sb strings.Builder
	*token = d.tokenizer.Lex()
	for !isEOD(*token) {
		sb.WriteString(token.String())
		*token = d.tokenizer.Lex()
	}
	d.handler.HandleError(loc, strings.TrimSpace(sb.String()))
}

// parsePragma handles: #pragma [STDGL] name[(value)].
func (d *DirectiveParser) parsePragma(token *Token) {
	const (
		pragmaName = iota
		leftParen
		pragmaValue
		rightParen
	)

	valid := true
	name, value := "", ""
	state := pragmaName

	*token = d.tokenizer.Lex()
	stdgl := token.Kind == TokenIdentifier && token.Text == "STDGL"
	if stdgl {
		*token = d.tokenizer.Lex()
	}
	for !isEOD(*token) {
		switch state {
		case pragmaName:
			name = token.Text
			valid = valid && token.Kind == TokenIdentifier
		case leftParen:
			valid = valid && token.Kind == TokenLeftParen
		case pragmaValue:
			value = token.Text
			valid = valid && token.Kind == TokenIdentifier
		case rightParen:
			valid = valid && token.Kind == TokenRightParen
		default:
			valid = false
		}
		state++
		*token = d.tokenizer.Lex()
	}

	valid = valid && (state == pragmaName || // empty pragma
		state == leftParen || // without value
		state == rightParen+1) // with value
	if !valid {
		d.diag.Report(DiagUnrecognizedPragma, token.Location, name)
	} else if state > pragmaName {
		d.handler.HandlePragma(token.Location, name, value, stdgl)
	}
}

func validExtensionBehavior(behavior string) bool {
	switch behavior {
	case "require", "enable", "warn", "disable":
		return true
	}
	return false
}

func (d *DirectiveParser) parseExtension(token *Token) {
	const (
		extName = iota
		colon
		extBehavior
	)

	valid := true
	name, behavior := "", ""
	state := extName

	*token = d.tokenizer.Lex()
	for !isEOD(*token) {
		switch state {
		case extName:
			if valid && token.Kind != TokenIdentifier {
				d.diag.Report(DiagInvalidExtensionName, token.Location, token.Text)
				valid = false
			}
			if valid {
				name = token.Text
			}
		case colon:
			if valid && token.Kind != TokenColon {
				d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
				valid = false
			}
		case extBehavior:
			if valid && (token.Kind != TokenIdentifier || !validExtensionBehavior(token.Text)) {
				d.diag.Report(DiagInvalidExtensionBehavior, token.Location, token.Text)
				valid = false
			}
			if valid {
				behavior = token.Text
			}
		default:
			if valid {
				d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
				valid = false
			}
		}
		state++
		*token = d.tokenizer.Lex()
	}
	if valid && state != extBehavior+1 {
		d.diag.Report(DiagInvalidExtensionDirective, token.Location, token.Text)
		valid = false
	}
	if valid && d.seenNonPreprocessorToken {
		// The diagnostic is reported for every version. From version
		// 300 on the directive is also rejected; earlier versions
		// still apply the extension.
		d.diag.Report(DiagNonPPTokenBeforeExtension, token.Location, token.Text)
		if d.shaderVersion >= 300 {
			valid = false
		}
	}
	if valid {
		d.handler.HandleExtension(token.Location, name, behavior)
	}
}

func (d *DirectiveParser) parseVersion(token *Token) {
	if d.pastFirstStatement {
		d.diag.Report(DiagVersionNotFirstStatement, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
		return
	}

	const (
		versionNumber = iota
		versionProfile
		versionEndline
	)

	valid := true
	version := 0
	state := versionNumber

	*token = d.tokenizer.Lex()
	for valid && !isEOD(*token) {
		switch state {
		case versionNumber:
			if token.Kind != TokenConstInt {
				d.diag.Report(DiagInvalidVersionNumber, token.Location, token.Text)
				valid = false
				break
			}
			v, ok := token.IntValue()
			if !ok {
				d.diag.Report(DiagIntegerOverflow, token.Location, token.Text)
				valid = false
				break
			}
			version = v
			if version < 300 {
				state = versionEndline
			} else {
				state = versionProfile
			}
		case versionProfile:
			if token.Kind != TokenIdentifier || token.Text != "es" {
				d.diag.Report(DiagInvalidVersionDirective, token.Location, token.Text)
				valid = false
			}
			state = versionEndline
		default:
			d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
			valid = false
		}
		*token = d.tokenizer.Lex()
	}

	if valid && state != versionEndline {
		d.diag.Report(DiagInvalidVersionDirective, token.Location, token.Text)
		valid = false
	}
	if valid && version >= 300 && token.Location.Line > 1 {
		d.diag.Report(DiagVersionNotFirstLine, token.Location, token.Text)
		valid = false
	}
	if valid && version != 100 && version != 300 {
		d.diag.Report(DiagUnsupportedShaderVersion, token.Location, token.Text)
		valid = false
	}

	if valid {
		d.handler.HandleVersion(token.Location, version)
		d.shaderVersion = version
		d.macros.PredefineInt("__VERSION__", version)
	}
}

func (d *DirectiveParser) parseLine(token *Token) {
	valid := true
	parsedFileNumber := false
	line, file := 0, 0

	expander := NewMacroExpander(d.tokenizer, d.macros, d.diag, d.maxDepth)

	*token = expander.Lex()
	if isEOD(*token) {
		d.diag.Report(DiagInvalidLineDirective, token.Location, token.Text)
		valid = false
	} else {
		line, *token, valid = ParseExpression(expander, d.diag, ExpressionOptions{
			MustFit32Bit:         true,
			UnexpectedIdentifier: DiagInvalidLineNumber,
			PresetToken:          token,
		})
		if !isEOD(*token) && valid {
			var fileValid bool
			file, *token, fileValid = ParseExpression(expander, d.diag, ExpressionOptions{
				MustFit32Bit:         true,
				UnexpectedIdentifier: DiagInvalidFileNumber,
				PresetToken:          token,
			})
			valid = valid && fileValid
			parsedFileNumber = true
		}
		if !isEOD(*token) {
			if valid {
				d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
				valid = false
			}
			skipUntilEOD(d.tokenizer, token)
		}
	}

	if valid {
		d.tokenizer.SetLineNumber(line)
		if parsedFileNumber {
			d.tokenizer.SetFileNumber(file)
		}
	}
}

// definedLexer recognizes the defined(X) operator before macro
// expansion sees it, replacing it with 0 or 1.
type definedLexer struct {
	lexer  Lexer
	macros MacroSet
	diag   Sink
}

// Lex implements Lexer.
func (dl *definedLexer) Lex() Token {
	token := dl.lexer.Lex()
	if token.Kind != TokenIdentifier || token.Text != "defined" {
		return token
	}

	paren := false
	t := dl.lexer.Lex()
	if t.Kind == TokenLeftParen {
		paren = true
		t = dl.lexer.Lex()
	}
	if t.Kind != TokenIdentifier {
		dl.diag.Report(DiagUnexpectedToken, t.Location, t.Text)
		skipUntilEOD(dl.lexer, &t)
		return t
	}
	_, defined := dl.macros[t.Text]
	if paren {
		closing := dl.lexer.Lex()
		if closing.Kind != TokenRightParen {
			dl.diag.Report(DiagUnexpectedToken, closing.Location, closing.Text)
			skipUntilEOD(dl.lexer, &closing)
			return closing
		}
	}
	value := "0"
	if defined {
		value = "1"
	}
	return Token{Kind: TokenConstInt, Text: value, Location: token.Location, LeadingSpace: token.LeadingSpace}
}

func (d *DirectiveParser) parseExpressionIf(token *Token) int {
	defined := &definedLexer{lexer: d.tokenizer, macros: d.macros, diag: d.diag}
	expander := NewMacroExpander(defined, d.macros, d.diag, d.maxDepth)

	expression, last, _ := ParseExpression(expander, d.diag, ExpressionOptions{
		UnexpectedIdentifier: DiagConditionalUnexpectedToken,
	})
	*token = last

	if !isEOD(*token) {
		d.diag.Report(DiagConditionalUnexpectedToken, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
	}
	return expression
}

func (d *DirectiveParser) parseExpressionIfdef(token *Token) int {
	*token = d.tokenizer.Lex()
	if token.Kind != TokenIdentifier {
		d.diag.Report(DiagUnexpectedToken, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
		return 0
	}

	_, defined := d.macros[token.Text]

	*token = d.tokenizer.Lex()
	if !isEOD(*token) {
		d.diag.Report(DiagConditionalUnexpectedToken, token.Location, token.Text)
		skipUntilEOD(d.tokenizer, token)
	}
	if defined {
		return 1
	}
	return 0
}
