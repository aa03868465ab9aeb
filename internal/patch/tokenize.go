package patch

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/pd4web/internal/model"
)

// SplitRecords cuts patch text into records. A record ends at an unescaped
// ";" followed by a newline or the end of the data; the newline belongs to
// the record. Records keep their exact bytes, so concatenating them yields
// data again.
func SplitRecords(data []byte) []string {
	var records []string
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] != ';' || escaped(data, i) {
			continue
		}
		end := i + 1
		switch {
		case end == len(data):
		case data[end] == '\n':
			end++
		case data[end] == '\r' && end+1 < len(data) && data[end+1] == '\n':
			end += 2
		default:
			continue
		}
		records = append(records, string(data[start:end]))
		start = end
		i = end - 1
	}
	if start < len(data) {
		records = append(records, string(data[start:]))
	}
	return records
}

// escaped reports whether data[i] is preceded by an odd run of backslashes.
func escaped(data []byte, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// ParseLine tokenizes one record.
func ParseLine(index int, raw string) model.PatchLine {
	text := strings.TrimRight(raw, " \t\r\n")
	if strings.HasSuffix(text, ";") && !escaped([]byte(text), len(text)-1) {
		text = text[:len(text)-1]
	}

	var tokens []string
	for _, tok := range strings.Fields(text) {
		if tok == "," {
			continue
		}
		if strings.HasSuffix(tok, ",") && !escaped([]byte(tok), len(tok)-1) {
			tok = tok[:len(tok)-1]
			if tok == "" {
				continue
			}
		}
		tokens = append(tokens, tok)
	}

	line := model.PatchLine{
		Index:   index,
		Raw:     raw,
		Tokens:  tokens,
		Kind:    kindOf(tokens),
		Library: model.PureData,
	}
	if line.IsObject() {
		line.FullName = tokens[4]
		line.Name = tokens[4]
	}
	return line
}

func kindOf(tokens []string) model.LineKind {
	if len(tokens) == 0 {
		return model.KindOther
	}
	switch tokens[0] {
	case "#N":
		return model.KindCanvas
	case "#A":
		return model.KindArray
	case "#X":
	default:
		return model.KindOther
	}
	if len(tokens) < 2 {
		return model.KindOther
	}
	switch k := model.LineKind(tokens[1]); k {
	case model.KindObject, model.KindConnect, model.KindMessage, model.KindFloatAtom,
		model.KindSymbolAtom, model.KindText, model.KindRestore, model.KindDeclare:
		return k
	}
	return model.KindOther
}

// Directive is one flag/value pair of a declare record.
type Directive struct {
	Flag  string
	Value string
}

// IsLib reports whether d loads a library binary.
func (d Directive) IsLib() bool {
	return d.Flag == "-lib" || d.Flag == "-stdlib"
}

// IsPath reports whether d adds a search path.
func (d Directive) IsPath() bool {
	return d.Flag == "-path" || d.Flag == "-stdpath"
}

// ParseDeclare returns every -lib, -stdlib, -path and -stdpath pair of a
// "#X declare" record in order.
func ParseDeclare(tokens []string) []Directive {
	var dirs []Directive
	for i := 2; i < len(tokens); i++ {
		switch tokens[i] {
		case "-lib", "-stdlib", "-path", "-stdpath":
			if i+1 < len(tokens) {
				dirs = append(dirs, Directive{Flag: tokens[i], Value: tokens[i+1]})
				i++
			}
		}
	}
	return dirs
}

// isFloat reports whether tok is a bare number typed into an object box.
// Words like "inf" or "nan" are not numbers here.
func isFloat(tok string) bool {
	if tok == "" {
		return false
	}
	switch c := tok[0]; {
	case c >= '0' && c <= '9', c == '-', c == '+', c == '.':
	default:
		return false
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func isDollar(tok string) bool {
	return strings.HasPrefix(tok, "$") || strings.HasPrefix(tok, `\$`)
}

func isInt(tok string) bool {
	if tok == "" {
		return false
	}
	_, err := strconv.Atoi(tok)
	return err == nil
}

var widthSuffix = regexp.MustCompile(`,\s+f\s+\d+\s*;\s*$`)

// hasWidth reports whether a record ends with a box width specifier
// (", f 12").
func hasWidth(raw string) bool {
	return widthSuffix.MatchString(raw)
}
