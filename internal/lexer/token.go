package lexer

// TokenType identifies a lexical token class.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	// literals and names
	IDENT    // bare identifier / keyword candidate
	VARIABLE // $name (value holds the name without $)
	INT
	FLOAT
	STRING        // single-quoted, no interpolation
	STRING_INTERP // double-quoted raw body, parser splits interpolation

	// operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	POW      // **
	DOT      // .
	ASSIGN   // =
	PLUS_EQ  // +=
	MINUS_EQ // -=
	STAR_EQ  // *=
	SLASH_EQ // /=
	DOT_EQ   // .=
	MOD_EQ   // %=
	POW_EQ   // **=
	COALESCE_EQ // ??=
	EQ       // ==
	NEQ      // !=
	IDENTICAL     // ===
	NOT_IDENTICAL // !==
	LT        // <
	LE        // <=
	GT        // >
	GE        // >=
	SPACESHIP // <=>
	AND       // &&
	OR        // ||
	NOT       // !
	COALESCE  // ??
	QUESTION  // ?
	COLON     // :
	SEMICOLON // ;
	COMMA     // ,
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	LBRACE    // {
	RBRACE    // }
	ARROW     // ->
	NULLSAFE  // ?->
	DOUBLE_COLON // ::
	DOUBLE_ARROW // =>
	AMP       // &
	PIPE      // |
	ELLIPSIS  // ...
	INC       // ++
	DEC       // --
	ATTRIBUTE // #[
)

var tokenNames = map[TokenType]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", IDENT: "IDENT", VARIABLE: "VARIABLE",
	INT: "INT", FLOAT: "FLOAT", STRING: "STRING", STRING_INTERP: "STRING_INTERP",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%", POW: "**",
	DOT: ".", ASSIGN: "=", PLUS_EQ: "+=", MINUS_EQ: "-=", STAR_EQ: "*=",
	SLASH_EQ: "/=", DOT_EQ: ".=", MOD_EQ: "%=", POW_EQ: "**=", COALESCE_EQ: "??=",
	EQ: "==", NEQ: "!=", IDENTICAL: "===", NOT_IDENTICAL: "!==",
	LT: "<", LE: "<=", GT: ">", GE: ">=", SPACESHIP: "<=>",
	AND: "&&", OR: "||", NOT: "!", COALESCE: "??",
	QUESTION: "?", COLON: ":", SEMICOLON: ";", COMMA: ",",
	LPAREN: "(", RPAREN: ")", LBRACKET: "[", RBRACKET: "]",
	LBRACE: "{", RBRACE: "}", ARROW: "->", NULLSAFE: "?->",
	DOUBLE_COLON: "::", DOUBLE_ARROW: "=>", AMP: "&", PIPE: "|",
	ELLIPSIS: "...", INC: "++", DEC: "--", ATTRIBUTE: "#[",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token is one lexical unit with its source position.
type Token struct {
	Type  TokenType
	Value string
	Line  int
}
