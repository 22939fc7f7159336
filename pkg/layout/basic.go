package layout

// basicSizes holds the sizes, in bits, of the types the resolver knows
// without a catalog entry. Keyword combinations are canonicalised first, so
// "long unsigned int" and "unsigned long" both find "unsigned long".
var basicSizes = map[string]int{
	"void":               0,
	"char":               8,
	"signed char":        8,
	"unsigned char":      8,
	"_Bool":              8,
	"bool":               8,
	"short":              16,
	"unsigned short":     16,
	"int":                32,
	"unsigned int":       32,
	"long":               32,
	"unsigned long":      32,
	"long long":          64,
	"unsigned long long": 64,
	"float":              32,
	"double":             64,
	"long double":        128,
	"float _Complex":     64,
	"double _Complex":    128,

	"size_t":    32,
	"ptrdiff_t": 32,
	"wchar_t":   16,
	"char16_t":  16,
	"char32_t":  32,

	"int8_t":   8,
	"uint8_t":  8,
	"int16_t":  16,
	"uint16_t": 16,
	"int32_t":  32,
	"uint32_t": 32,
	"int64_t":  64,
	"uint64_t": 64,
}

// unsignedNames are the non-keyword basic names without a sign.
var unsignedNames = map[string]bool{
	"bool": true, "size_t": true, "char16_t": true, "char32_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
}

var specifierWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "_Complex": true,
}

// canonicalBasic reduces a list of specifier keywords to the key used in
// basicSizes. ok is false if any word is not a specifier keyword.
func canonicalBasic(words []string) (name string, ok bool) {
	if len(words) == 0 {
		return "", false
	}
	var unsigned, signed, short, char, integer, float, double, void, boolean, complex bool
	longs := 0
	for _, w := range words {
		if !specifierWords[w] {
			return "", false
		}
		switch w {
		case "unsigned":
			unsigned = true
		case "signed":
			signed = true
		case "short":
			short = true
		case "long":
			longs++
		case "char":
			char = true
		case "int":
			integer = true
		case "float":
			float = true
		case "double":
			double = true
		case "void":
			void = true
		case "_Bool":
			boolean = true
		case "_Complex":
			complex = true
		}
	}
	prefix := ""
	if unsigned {
		prefix = "unsigned "
	}
	switch {
	case void:
		return "void", true
	case boolean:
		return "_Bool", true
	case complex && float:
		return "float _Complex", true
	case complex:
		return "double _Complex", true
	case char && signed:
		return "signed char", true
	case char:
		return prefix + "char", true
	case float:
		return "float", true
	case double && longs > 0:
		return "long double", true
	case double:
		return "double", true
	case short:
		return prefix + "short", true
	case longs >= 2:
		return prefix + "long long", true
	case longs == 1:
		return prefix + "long", true
	case integer, unsigned, signed:
		return prefix + "int", true
	}
	return "", false
}

// basicType looks up words as a basic type.
func basicType(words []string, name string) (size int, signed bool, ok bool) {
	if canon, isKeyword := canonicalBasic(words); isKeyword {
		size, ok = basicSizes[canon]
		return size, !hasWord(words, "unsigned") && canon != "_Bool" && canon != "void", ok
	}
	if len(words) != 1 {
		return 0, false, false
	}
	size, ok = basicSizes[name]
	return size, !unsignedNames[name], ok
}

func hasWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
