// Package preprocess turns raw C header text into text the declaration
// parser can consume.
//
// It is deliberately not a full C preprocessor. The pipeline is:
//
//  1. inline local #include "file" directives (include.go)
//  2. join backslash line continuations
//  3. strip block comments, then line comments
//  4. record the last #pragma pack(N)
//  5. collect #define macros, evaluating restricted arithmetic values
//  6. evaluate #if/#ifdef/#ifndef/#elif/#else/#endif
//  7. expand macros over the surviving text, at most three passes
//  8. drop every remaining line that starts with '#'
//
// Conditions accept integer literals, defined(NAME), known macro names and
// the operators && || ! ( ). Anything else evaluates to false and is reported
// as an unparseable condition. An #ifndef whose name ends in _H is treated as
// a header guard and always included.
//
// Every dropped line is replaced by an empty line, so line numbers in the
// output match the inlined input.
package preprocess
