package treesitter

// Python 3 hard keywords
var keywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await",
	"break", "class", "continue", "def", "del", "elif", "else", "except",
	"finally", "for", "from", "global", "if", "import", "in", "is",
	"lambda", "nonlocal", "not", "or", "pass", "raise", "return", "try",
	"while", "with", "yield",
}

var builtinFunctions = []string{
	"__import__", "abs", "aiter", "all", "anext", "any", "ascii", "bin",
	"breakpoint", "callable", "chr", "compile", "delattr", "dir", "divmod",
	"eval", "exec", "format", "getattr", "globals", "hasattr", "hash", "help",
	"hex", "id", "input", "isinstance", "issubclass", "iter", "len", "locals",
	"max", "min", "next", "oct", "open", "ord", "pow", "print", "repr",
	"round", "setattr", "sorted", "sum", "vars",
}

var builtinClasses = []string{
	"bool", "bytearray", "bytes", "classmethod", "complex", "dict",
	"enumerate", "filter", "float", "frozenset", "int", "list", "map",
	"memoryview", "object", "property", "range", "reversed", "set", "slice",
	"staticmethod", "str", "super", "tuple", "type", "zip",

	"ArithmeticError", "AssertionError", "AttributeError", "BaseException",
	"BlockingIOError", "BrokenPipeError", "BufferError", "ConnectionError",
	"EOFError", "Exception", "FileExistsError", "FileNotFoundError",
	"FloatingPointError", "GeneratorExit", "ImportError", "IndentationError",
	"IndexError", "InterruptedError", "IsADirectoryError", "KeyError",
	"KeyboardInterrupt", "LookupError", "MemoryError", "ModuleNotFoundError",
	"NameError", "NotADirectoryError", "NotImplementedError", "OSError",
	"OverflowError", "PermissionError", "RecursionError", "ReferenceError",
	"RuntimeError", "StopAsyncIteration", "StopIteration", "SyntaxError",
	"SystemExit", "TabError", "TimeoutError", "TypeError",
	"UnboundLocalError", "UnicodeDecodeError", "UnicodeEncodeError",
	"UnicodeError", "ValueError", "ZeroDivisionError",

	"DeprecationWarning", "FutureWarning", "RuntimeWarning", "SyntaxWarning",
	"UserWarning", "Warning",
}

var builtinInstances = []string{"Ellipsis", "NotImplemented", "__debug__"}

// Parameter names for common builtins, as reported by the interpreter's
// own signatures
var builtinSignatures = map[string][]string{
	"abs":        {"x"},
	"all":        {"iterable"},
	"any":        {"iterable"},
	"dict":       {"kwargs"},
	"enumerate":  {"iterable", "start"},
	"filter":     {"function", "iterable"},
	"getattr":    {"object", "name", "default"},
	"hasattr":    {"obj", "name"},
	"input":      {"prompt"},
	"int":        {"x", "base"},
	"isinstance": {"obj", "class_or_tuple"},
	"len":        {"obj"},
	"list":       {"iterable"},
	"map":        {"func", "iterables"},
	"open":       {"file", "mode", "buffering", "encoding", "errors", "newline", "closefd", "opener"},
	"print":      {"values", "sep", "end", "file", "flush"},
	"range":      {"start", "stop", "step"},
	"repr":       {"obj"},
	"sorted":     {"iterable", "key", "reverse"},
	"str":        {"object", "encoding", "errors"},
	"sum":        {"iterable", "start"},
	"zip":        {"iterables", "strict"},
}
