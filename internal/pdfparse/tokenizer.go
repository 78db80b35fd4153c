package pdfparse

import (
	"fmt"
	"strconv"

	"github.com/iiifstream/pdfstream/internal/pdfval"
)

func isWS(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// skipWS advances past whitespace and "%" comments (to end of line).
func skipWS(data []byte, i int) int {
	for i < len(data) {
		if isWS(data[i]) {
			i++
			continue
		}
		if data[i] == '%' {
			for i < len(data) && data[i] != '\n' {
				i++
			}
			continue
		}
		break
	}
	return i
}

// readInt reads a run of ASCII digits (with optional leading '-') starting
// at i and returns its text and length; length 0 means no digits found.
func readInt(data []byte, i int) (string, int) {
	start := i
	j := i
	if j < len(data) && (data[j] == '-' || data[j] == '+') {
		j++
	}
	for j < len(data) && data[j] >= '0' && data[j] <= '9' {
		j++
	}
	if j == start || (j == start+1 && (data[start] == '-' || data[start] == '+')) {
		return "", 0
	}
	return string(data[start:j]), j - start
}

// parseValue parses one PDF value starting at i and returns it along with
// the number of bytes consumed.
func parseValue(data []byte, i int) (pdfval.Value, int, error) {
	start := i
	i = skipWS(data, i)
	if i >= len(data) {
		return nil, 0, fmt.Errorf("unexpected end of input")
	}
	switch {
	case data[i] == '/':
		name, n := readName(data, i)
		return pdfval.Name(name), (i + n) - start, nil
	case data[i] == '(':
		s, n, err := readLiteralString(data, i)
		if err != nil {
			return nil, 0, err
		}
		return pdfval.LiteralString(s), (i + n) - start, nil
	case data[i] == '<' && i+1 < len(data) && data[i+1] == '<':
		d, n, err := readDict(data, i)
		if err != nil {
			return nil, 0, err
		}
		return d, (i + n) - start, nil
	case data[i] == '<':
		b, n, err := readHexString(data, i)
		if err != nil {
			return nil, 0, err
		}
		return pdfval.HexString(b), (i + n) - start, nil
	case data[i] == '[':
		a, n, err := readArray(data, i)
		if err != nil {
			return nil, 0, err
		}
		return a, (i + n) - start, nil
	case matchKeyword(data, i, "true"):
		return pdfval.Bool(true), (i + 4) - start, nil
	case matchKeyword(data, i, "false"):
		return pdfval.Bool(false), (i + 5) - start, nil
	case matchKeyword(data, i, "null"):
		return pdfval.Null{}, (i + 4) - start, nil
	case data[i] == '-' || data[i] == '+' || (data[i] >= '0' && data[i] <= '9') || data[i] == '.':
		return readNumberOrRef(data, i, start)
	default:
		return nil, 0, fmt.Errorf("unexpected byte %q at offset %d", data[i], i)
	}
}

func matchKeyword(data []byte, i int, kw string) bool {
	if i+len(kw) > len(data) {
		return false
	}
	if string(data[i:i+len(kw)]) != kw {
		return false
	}
	end := i + len(kw)
	return end >= len(data) || isWS(data[end]) || isDelim(data[end])
}

func readName(data []byte, i int) (string, int) {
	start := i
	i++ // skip '/'
	var out []byte
	for i < len(data) && !isWS(data[i]) && !isDelim(data[i]) {
		if data[i] == '#' && i+2 < len(data) {
			hi, okHi := hexDigit(data[i+1])
			lo, okLo := hexDigit(data[i+2])
			if okHi && okLo {
				out = append(out, byte(hi<<4|lo))
				i += 3
				continue
			}
		}
		out = append(out, data[i])
		i++
	}
	return string(out), i - start
}

func hexDigit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	}
	return 0, false
}

func readLiteralString(data []byte, i int) (string, int, error) {
	start := i
	i++ // skip '('
	depth := 1
	var out []byte
	for i < len(data) && depth > 0 {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				return "", 0, fmt.Errorf("unterminated escape in literal string")
			}
			next := data[i+1]
			switch next {
			case 'n':
				out = append(out, '\n')
				i += 2
			case 'r':
				out = append(out, '\r')
				i += 2
			case 't':
				out = append(out, '\t')
				i += 2
			case 'b':
				out = append(out, '\b')
				i += 2
			case 'f':
				out = append(out, '\f')
				i += 2
			case '(', ')', '\\':
				out = append(out, next)
				i += 2
			case '\n':
				i += 2
			case '\r':
				i += 2
				if i < len(data) && data[i] == '\n' {
					i++
				}
			default:
				if next >= '0' && next <= '7' {
					j := i + 1
					val := 0
					for k := 0; k < 3 && j < len(data) && data[j] >= '0' && data[j] <= '7'; k++ {
						val = val*8 + int(data[j]-'0')
						j++
					}
					out = append(out, byte(val))
					i = j
				} else {
					out = append(out, next)
					i += 2
				}
			}
		case '(':
			depth++
			out = append(out, c)
			i++
		case ')':
			depth--
			i++
			if depth > 0 {
				out = append(out, c)
			}
		default:
			out = append(out, c)
			i++
		}
	}
	return string(out), i - start, nil
}

func readHexString(data []byte, i int) ([]byte, int, error) {
	start := i
	i++ // skip '<'
	var digits []byte
	for i < len(data) && data[i] != '>' {
		if !isWS(data[i]) {
			digits = append(digits, data[i])
		}
		i++
	}
	if i >= len(data) {
		return nil, 0, fmt.Errorf("unterminated hex string")
	}
	i++ // skip '>'
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for k := 0; k < len(out); k++ {
		hi, _ := hexDigit(digits[k*2])
		lo, _ := hexDigit(digits[k*2+1])
		out[k] = byte(hi<<4 | lo)
	}
	return out, i - start, nil
}

func readDict(data []byte, i int) (*pdfval.Dict, int, error) {
	start := i
	i += 2 // skip "<<"
	d := &pdfval.Dict{}
	for {
		i = skipWS(data, i)
		if i+1 < len(data) && data[i] == '>' && data[i+1] == '>' {
			i += 2
			return d, i - start, nil
		}
		if i >= len(data) || data[i] != '/' {
			return nil, 0, fmt.Errorf("expected name key in dict at offset %d", i)
		}
		key, n := readName(data, i)
		i += n
		i = skipWS(data, i)
		v, n2, err := parseValue(data, i)
		if err != nil {
			return nil, 0, err
		}
		i += n2
		d.Set(key, v)
	}
}

func readArray(data []byte, i int) (pdfval.Array, int, error) {
	start := i
	i++ // skip '['
	var arr pdfval.Array
	for {
		i = skipWS(data, i)
		if i < len(data) && data[i] == ']' {
			i++
			return arr, i - start, nil
		}
		v, n, err := parseValue(data, i)
		if err != nil {
			return nil, 0, err
		}
		i += n
		arr = append(arr, v)
	}
}

// readNumberOrRef parses a number and, if it is followed by "generation R",
// returns a Ref instead — the classic "N G R" indirect-reference ambiguity.
func readNumberOrRef(data []byte, i int, start int) (pdfval.Value, int, error) {
	numStr, n := readNumber(data, i)
	if n == 0 {
		return nil, 0, fmt.Errorf("expected number at offset %d", i)
	}
	i += n
	if isIntLiteral(numStr) {
		save := i
		j := skipWS(data, i)
		genStr, n2 := readInt(data, j)
		if n2 > 0 {
			j += n2
			k := skipWS(data, j)
			if k < len(data) && data[k] == 'R' && (k+1 >= len(data) || isWS(data[k+1]) || isDelim(data[k+1])) {
				num, _ := strconv.Atoi(numStr)
				_ = genStr
				return pdfval.Ref{Num: num}, (k + 1) - start, nil
			}
		}
		i = save
		num, _ := strconv.ParseInt(numStr, 10, 64)
		return pdfval.Int(num), i - start, nil
	}
	f, _ := strconv.ParseFloat(numStr, 64)
	return pdfval.Real(f), i - start, nil
}

func isIntLiteral(s string) bool {
	for i, c := range s {
		if c == '.' {
			return false
		}
		if i == 0 && (c == '-' || c == '+') {
			continue
		}
	}
	return true
}

func readNumber(data []byte, i int) (string, int) {
	start := i
	if i < len(data) && (data[i] == '-' || data[i] == '+') {
		i++
	}
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	if i < len(data) && data[i] == '.' {
		i++
		for i < len(data) && data[i] >= '0' && data[i] <= '9' {
			i++
		}
	}
	if i == start {
		return "", 0
	}
	return string(data[start:i]), i - start
}
