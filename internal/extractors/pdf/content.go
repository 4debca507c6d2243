package pdf

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf16"
)

// kerningSpace is the TJ displacement (thousandths of a text unit) beyond
// which a gap is read as a word break.
const kerningSpace = -200

type operandKind int

const (
	operandOther operandKind = iota
	operandString
	operandNumber
	operandArray
)

type operand struct {
	kind  operandKind
	str   string
	num   float64
	array []operand
}

// ContentText interprets a decoded page content stream and returns the text
// shown by its text operators. Line moves become newlines.
func ContentText(stream []byte) string {
	w := &textWriter{}
	var operands []operand
	var array []operand
	inArray := false

	push := func(op operand) {
		if inArray {
			array = append(array, op)
		} else {
			operands = append(operands, op)
		}
	}

	s := stream
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isWhite(c):
			i++
		case c == '%':
			for i < len(s) && s[i] != '\n' && s[i] != '\r' {
				i++
			}
		case c == '(':
			str, n := readLiteral(s[i:])
			push(operand{kind: operandString, str: str})
			i += n
		case c == '<' && i+1 < len(s) && s[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(s) && s[i+1] == '>':
			i += 2
		case c == '<':
			str, n := readHex(s[i:])
			push(operand{kind: operandString, str: str})
			i += n
		case c == '[':
			inArray, array = true, nil
			i++
		case c == ']':
			inArray = false
			operands = append(operands, operand{kind: operandArray, array: array})
			i++
		case c == '/':
			j := i + 1
			for j < len(s) && !isWhite(s[j]) && !isDelim(s[j]) {
				j++
			}
			push(operand{kind: operandOther})
			i = j
		case c == '{' || c == '}' || c == ')' || c == '>':
			i++
		default:
			j := i
			for j < len(s) && !isWhite(s[j]) && !isDelim(s[j]) {
				j++
			}
			if j == i {
				j++
			}
			word := string(s[i:j])
			i = j
			if num, err := strconv.ParseFloat(word, 64); err == nil {
				push(operand{kind: operandNumber, num: num})
				continue
			}
			if word == "BI" {
				i = skipInlineImage(s, i)
			} else {
				w.apply(word, operands)
			}
			operands = operands[:0]
		}
	}
	return w.String()
}

type textWriter struct {
	buf   strings.Builder
	lastY float64
	hasY  bool
}

func (w *textWriter) apply(op string, operands []operand) {
	switch op {
	case "Tj":
		w.show(lastOf(operands, operandString))
	case "'", "\"":
		w.newline()
		w.show(lastOf(operands, operandString))
	case "TJ":
		arr := lastOf(operands, operandArray)
		for _, el := range arr.array {
			switch el.kind {
			case operandString:
				w.buf.WriteString(el.str)
			case operandNumber:
				if el.num < kerningSpace {
					w.space()
				}
			}
		}
	case "T*", "ET":
		w.newline()
	case "Td", "TD":
		nums := numbers(operands)
		if len(nums) >= 2 && nums[1] != 0 {
			w.newline()
		} else {
			w.space()
		}
	case "Tm":
		nums := numbers(operands)
		if len(nums) >= 6 {
			y := nums[5]
			if w.hasY && y != w.lastY {
				w.newline()
			}
			w.lastY, w.hasY = y, true
		}
	}
}

func (w *textWriter) show(op operand) {
	if op.kind == operandString {
		w.buf.WriteString(op.str)
	}
}

func (w *textWriter) newline() {
	s := w.buf.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		w.buf.WriteByte('\n')
	}
}

func (w *textWriter) space() {
	s := w.buf.String()
	if s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
		w.buf.WriteByte(' ')
	}
}

func (w *textWriter) String() string {
	lines := strings.Split(w.buf.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func lastOf(operands []operand, kind operandKind) operand {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == kind {
			return operands[i]
		}
	}
	return operand{}
}

func numbers(operands []operand) []float64 {
	var out []float64
	for _, op := range operands {
		if op.kind == operandNumber {
			out = append(out, op.num)
		}
	}
	return out
}

// readLiteral decodes a (...) string starting at s[0] and returns it with
// the number of bytes consumed.
func readLiteral(s []byte) (string, int) {
	var b []byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '(':
			depth++
			if depth > 1 {
				b = append(b, c)
			}
		case ')':
			depth--
			if depth == 0 {
				return decodeText(b), i + 1
			}
			b = append(b, c)
		case '\\':
			i++
			if i >= len(s) {
				return decodeText(b), len(s)
			}
			switch e := s[i]; e {
			case 'n', 'r':
				b = append(b, '\n')
			case 't':
				b = append(b, '\t')
			case 'b', 'f':
			case '\r':
				if i+1 < len(s) && s[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := 0
					j := i
					for ; j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7'; j++ {
						v = v*8 + int(s[j]-'0')
					}
					b = append(b, byte(v))
					i = j - 1
				} else {
					b = append(b, e)
				}
			}
		default:
			b = append(b, c)
		}
	}
	return decodeText(b), len(s)
}

// readHex decodes a <...> string.
func readHex(s []byte) (string, int) {
	end := bytes.IndexByte(s, '>')
	if end < 0 {
		end = len(s) - 1
	}
	var digits []byte
	for _, c := range s[1:end] {
		if !isWhite(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	b := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return "", end + 1
		}
		b = append(b, byte(v))
	}
	return decodeText(b), end + 1
}

// decodeText maps string bytes to UTF-8. UTF-16BE with a byte order mark or
// with all-zero high bytes is decoded as such; anything else is read as
// Latin-1, which covers the common single-byte font encodings.
func decodeText(b []byte) string {
	if len(b) >= 2 && len(b)%2 == 0 {
		bom := b[0] == 0xFE && b[1] == 0xFF
		if bom || highBytesZero(b) {
			if bom {
				b = b[2:]
			}
			units := make([]uint16, 0, len(b)/2)
			for i := 0; i+1 < len(b); i += 2 {
				units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
			}
			return string(utf16.Decode(units))
		}
	}
	runes := make([]rune, 0, len(b))
	for _, c := range b {
		if c < 0x20 && c != '\n' && c != '\t' {
			continue
		}
		runes = append(runes, rune(c))
	}
	return string(runes)
}

func highBytesZero(b []byte) bool {
	for i := 0; i < len(b); i += 2 {
		if b[i] != 0 {
			return false
		}
	}
	return true
}

// skipInlineImage moves past BI ... ID <data> EI.
func skipInlineImage(s []byte, i int) int {
	idx := bytes.Index(s[i:], []byte("EI"))
	for idx >= 0 {
		end := i + idx + 2
		if (end == len(s) || isWhite(s[end])) && i+idx > 0 && isWhite(s[i+idx-1]) {
			return end
		}
		next := bytes.Index(s[end:], []byte("EI"))
		if next < 0 {
			break
		}
		idx = end - i + next
	}
	return len(s)
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
