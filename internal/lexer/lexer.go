// Package lexer tokenizes the scripting language's surface syntax. It
// accepts bare program text or text wrapped in the <?php open tag.
package lexer

import (
	"strings"

	"github.com/pkg/errors"
)

// Lexer scans source text into tokens.
type Lexer struct {
	src  string
	pos  int
	line int
}

// New returns a lexer over src. A leading open tag is consumed here so the
// parser never sees it.
func New(src string) *Lexer {
	l := &Lexer{src: src, line: 1}
	l.skipOpenTag()
	return l
}

// Tokenize scans the whole input. The returned slice always ends with EOF.
func Tokenize(src string) ([]Token, error) {
	l := New(src)
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) skipOpenTag() {
	rest := l.src[l.pos:]
	switch {
	case strings.HasPrefix(rest, "<?php"):
		l.pos += len("<?php")
	case strings.HasPrefix(rest, "<?"):
		l.pos += len("<?")
	}
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespaceAndComments()
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Line: l.line}, nil
	}

	line := l.line
	ch := l.src[l.pos]

	switch {
	case ch == '$':
		return l.scanVariable()
	case isIdentStart(ch):
		return l.scanIdent()
	case isDigit(ch):
		return l.scanNumber()
	case ch == '\'':
		return l.scanSingleQuoted()
	case ch == '"':
		return l.scanDoubleQuoted()
	}

	// close tag ends the script
	if strings.HasPrefix(l.src[l.pos:], "?>") {
		l.pos = len(l.src)
		return Token{Type: EOF, Line: line}, nil
	}

	mk := func(t TokenType, text string) (Token, error) {
		l.pos += len(text)
		return Token{Type: t, Value: text, Line: line}, nil
	}

	three := l.peekN(3)
	switch three {
	case "===":
		return mk(IDENTICAL, three)
	case "!==":
		return mk(NOT_IDENTICAL, three)
	case "<=>":
		return mk(SPACESHIP, three)
	case "**=":
		return mk(POW_EQ, three)
	case "??=":
		return mk(COALESCE_EQ, three)
	case "...":
		return mk(ELLIPSIS, three)
	case "?->":
		return mk(NULLSAFE, three)
	}

	two := l.peekN(2)
	switch two {
	case "==":
		return mk(EQ, two)
	case "!=", "<>":
		return mk(NEQ, two)
	case "<=":
		return mk(LE, two)
	case ">=":
		return mk(GE, two)
	case "&&":
		return mk(AND, two)
	case "||":
		return mk(OR, two)
	case "??":
		return mk(COALESCE, two)
	case "->":
		return mk(ARROW, two)
	case "::":
		return mk(DOUBLE_COLON, two)
	case "=>":
		return mk(DOUBLE_ARROW, two)
	case "**":
		return mk(POW, two)
	case "++":
		return mk(INC, two)
	case "--":
		return mk(DEC, two)
	case "+=":
		return mk(PLUS_EQ, two)
	case "-=":
		return mk(MINUS_EQ, two)
	case "*=":
		return mk(STAR_EQ, two)
	case "/=":
		return mk(SLASH_EQ, two)
	case ".=":
		return mk(DOT_EQ, two)
	case "%=":
		return mk(MOD_EQ, two)
	case "#[":
		return mk(ATTRIBUTE, two)
	}

	switch ch {
	case '+':
		return mk(PLUS, "+")
	case '-':
		return mk(MINUS, "-")
	case '*':
		return mk(STAR, "*")
	case '/':
		return mk(SLASH, "/")
	case '%':
		return mk(PERCENT, "%")
	case '.':
		return mk(DOT, ".")
	case '=':
		return mk(ASSIGN, "=")
	case '<':
		return mk(LT, "<")
	case '>':
		return mk(GT, ">")
	case '!':
		return mk(NOT, "!")
	case '?':
		return mk(QUESTION, "?")
	case ':':
		return mk(COLON, ":")
	case ';':
		return mk(SEMICOLON, ";")
	case ',':
		return mk(COMMA, ",")
	case '(':
		return mk(LPAREN, "(")
	case ')':
		return mk(RPAREN, ")")
	case '[':
		return mk(LBRACKET, "[")
	case ']':
		return mk(RBRACKET, "]")
	case '{':
		return mk(LBRACE, "{")
	case '}':
		return mk(RBRACE, "}")
	case '&':
		return mk(AMP, "&")
	case '|':
		return mk(PIPE, "|")
	case '\\':
		// namespace separator in qualified names; treated as part of idents
		return l.scanIdent()
	}

	return Token{}, errors.Errorf("line %d: unexpected character %q", line, string(ch))
}

func (l *Lexer) peekN(n int) string {
	if l.pos+n > len(l.src) {
		return ""
	}
	return l.src[l.pos : l.pos+n]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case ch == '\n':
			l.line++
			l.pos++
		case ch == ' ' || ch == '\t' || ch == '\r':
			l.pos++
		case strings.HasPrefix(l.src[l.pos:], "//"):
			l.skipLineComment()
		case ch == '#' && !strings.HasPrefix(l.src[l.pos:], "#["):
			l.skipLineComment()
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			l.pos += 2
			for l.pos < len(l.src) && !strings.HasPrefix(l.src[l.pos:], "*/") {
				if l.src[l.pos] == '\n' {
					l.line++
				}
				l.pos++
			}
			l.pos += 2
		default:
			return
		}
	}
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		if strings.HasPrefix(l.src[l.pos:], "?>") {
			return
		}
		l.pos++
	}
}

func (l *Lexer) scanVariable() (Token, error) {
	line := l.line
	l.pos++ // $
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		return Token{}, errors.Errorf("line %d: expected variable name after $", line)
	}
	return Token{Type: VARIABLE, Value: l.src[start:l.pos], Line: line}, nil
}

func (l *Lexer) scanIdent() (Token, error) {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) && (isIdentPart(l.src[l.pos]) || l.src[l.pos] == '\\') {
		l.pos++
	}
	return Token{Type: IDENT, Value: l.src[start:l.pos], Line: line}, nil
}

func (l *Lexer) scanNumber() (Token, error) {
	line := l.line
	start := l.pos
	if strings.HasPrefix(l.src[l.pos:], "0x") || strings.HasPrefix(l.src[l.pos:], "0X") {
		l.pos += 2
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
		return Token{Type: INT, Value: l.src[start:l.pos], Line: line}, nil
	}
	isFloat := false
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if isDigit(ch) || ch == '_' {
			l.pos++
			continue
		}
		if ch == '.' && !isFloat && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
			isFloat = true
			l.pos++
			continue
		}
		if (ch == 'e' || ch == 'E') && l.pos+1 < len(l.src) {
			next := l.src[l.pos+1]
			if isDigit(next) || ((next == '+' || next == '-') && l.pos+2 < len(l.src) && isDigit(l.src[l.pos+2])) {
				isFloat = true
				l.pos += 2
				continue
			}
		}
		break
	}
	text := strings.ReplaceAll(l.src[start:l.pos], "_", "")
	if isFloat {
		return Token{Type: FLOAT, Value: text, Line: line}, nil
	}
	return Token{Type: INT, Value: text, Line: line}, nil
}

func (l *Lexer) scanSingleQuoted() (Token, error) {
	line := l.line
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch == '\\' && l.pos+1 < len(l.src) {
			next := l.src[l.pos+1]
			if next == '\'' || next == '\\' {
				sb.WriteByte(next)
				l.pos += 2
				continue
			}
		}
		if ch == '\'' {
			l.pos++
			return Token{Type: STRING, Value: sb.String(), Line: line}, nil
		}
		if ch == '\n' {
			l.line++
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{}, errors.Errorf("line %d: unterminated string", line)
}

// scanDoubleQuoted returns the raw body with escape sequences resolved but
// interpolation markers ($var, {$expr}) left intact for the parser.
func (l *Lexer) scanDoubleQuoted() (Token, error) {
	line := l.line
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch == '\\' && l.pos+1 < len(l.src) {
			next := l.src[l.pos+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case '$':
				// keep escaped so the parser does not interpolate it
				sb.WriteString("\\$")
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(next)
			}
			l.pos += 2
			continue
		}
		if ch == '"' {
			l.pos++
			return Token{Type: STRING_INTERP, Value: sb.String(), Line: line}, nil
		}
		if ch == '\n' {
			l.line++
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{}, errors.Errorf("line %d: unterminated string", line)
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
