package vm

import "fmt"

// ErrorKind categorizes runtime errors. Kinds are part of the language
// surface: type_of on an error value and catch-clause filtering both see the
// kind name.
type ErrorKind uint8

const (
	ERROR_RUNTIME ErrorKind = iota
	ERROR_TYPE
	ERROR_NAME
	ERROR_INDEX
	ERROR_KEY
	ERROR_VALUE
	ERROR_CONVERSION
	ERROR_ARGUMENT
	ERROR_IMPORT
	ERROR_ATTRIBUTE
	ERROR_UNIMPLEMENTED
	ERROR_SYNTAX
	ERROR_IO
	ERROR_RECURSION
	ERROR_EOF

	ERROR_KIND_COUNT
)

var errorKindNames = [ERROR_KIND_COUNT]string{
	ERROR_RUNTIME:       "RuntimeError",
	ERROR_TYPE:          "TypeError",
	ERROR_NAME:          "NameError",
	ERROR_INDEX:         "IndexError",
	ERROR_KEY:           "KeyError",
	ERROR_VALUE:         "ValueError",
	ERROR_CONVERSION:    "ConversionError",
	ERROR_ARGUMENT:      "ArgumentError",
	ERROR_IMPORT:        "ImportError",
	ERROR_ATTRIBUTE:     "AttributeError",
	ERROR_UNIMPLEMENTED: "UnimplementedError",
	ERROR_SYNTAX:        "SyntaxError",
	ERROR_IO:            "IOError",
	ERROR_RECURSION:     "RecursionError",
	ERROR_EOF:           "EOFError",
}

func (k ErrorKind) String() string {
	if k < ERROR_KIND_COUNT {
		return errorKindNames[k]
	}
	return "UnknownError"
}

// SourceLocation pins an error to a position in the program.
type SourceLocation struct {
	File   string
	Line   int32
	Column int32
}

func (l SourceLocation) String() string {
	if l.File == "" {
		return fmt.Sprintf("line %d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// RuntimeError is the Go-side view of an uncaught VM error. Interpret
// returns one so that embedders and the CLI can report kind and location
// without reaching into the register file.
type RuntimeError struct {
	Kind     ErrorKind
	Message  string
	Location SourceLocation
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s at %s", e.Kind, e.Message, e.Location)
}

func runtimeErrorFromObj(err *ObjError) *RuntimeError {
	msg := ""
	if err.Message != nil {
		msg = err.Message.text()
	}
	return &RuntimeError{
		Kind:    err.Kind,
		Message: msg,
		Location: SourceLocation{
			File:   err.File,
			Line:   int32(err.Line),
			Column: int32(err.Column),
		},
	}
}
