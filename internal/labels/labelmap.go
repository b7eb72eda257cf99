package labels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax is returned for label map files that cannot be parsed.
var ErrSyntax = errors.New("label map syntax error")

// Map maps class ids to class names.
type Map map[uint16]string

// Name returns the class name for id, or the id itself when unknown.
func (m Map) Name(id uint16) string {
	if name, ok := m[id]; ok {
		return name
	}
	return strconv.Itoa(int(id))
}

// LoadLabelMap reads a TensorFlow object-detection label map (.pbtxt).
func LoadLabelMap(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label map: %w", err)
	}
	defer f.Close()

	m, err := ParseLabelMap(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseLabelMap parses label map text of the form
//
//	item {
//	  id: 1
//	  name: 'plastic'
//	}
//
// Items may span lines or share one. display_name is used when name is
// absent; other fields are ignored. Lines starting with # are comments.
func ParseLabelMap(r io.Reader) (Map, error) {
	toks, err := tokenize(r)
	if err != nil {
		return nil, err
	}

	m := make(Map)
	p := &parser{toks: toks}
	for !p.done() {
		if err := p.item(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type token struct {
	text   string
	quoted bool
	line   int
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) next() (token, error) {
	if p.done() {
		return token{}, fmt.Errorf("%w: unexpected end of file", ErrSyntax)
	}
	t := p.toks[p.pos]
	p.pos++
	return t, nil
}

func (p *parser) expect(text string) error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t.quoted || t.text != text {
		return fmt.Errorf("%w: line %d: expected %q, got %q", ErrSyntax, t.line, text, t.text)
	}
	return nil
}

func (p *parser) item(m Map) error {
	if err := p.expect("item"); err != nil {
		return err
	}
	if err := p.expect("{"); err != nil {
		return err
	}

	var (
		id          int64 = -1
		name, dname string
		line        int
	)
	for {
		key, err := p.next()
		if err != nil {
			return err
		}
		if key.text == "}" && !key.quoted {
			line = key.line
			break
		}
		if err := p.expect(":"); err != nil {
			return err
		}
		val, err := p.next()
		if err != nil {
			return err
		}

		switch key.text {
		case "id":
			id, err = strconv.ParseInt(val.text, 10, 32)
			if err != nil || id < 0 || id > 0xFFFF {
				return fmt.Errorf("%w: line %d: invalid id %q", ErrSyntax, val.line, val.text)
			}
		case "name":
			name = val.text
		case "display_name":
			dname = val.text
		}
	}

	if id < 0 {
		return fmt.Errorf("%w: item ending on line %d has no id", ErrSyntax, line)
	}
	if name == "" {
		name = dname
	}
	m[uint16(id)] = name
	return nil
}

// tokenize splits label map text into braces, colons, bare words and
// quoted strings.
func tokenize(r io.Reader) ([]token, error) {
	var toks []token
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := sc.Text()
		for i := 0; i < len(s); {
			c := s[i]
			switch {
			case c == '#':
				i = len(s)
			case unicode.IsSpace(rune(c)):
				i++
			case c == '{' || c == '}' || c == ':':
				toks = append(toks, token{text: string(c), line: line})
				i++
			case c == '\'' || c == '"':
				end := strings.IndexByte(s[i+1:], c)
				if end < 0 {
					return nil, fmt.Errorf("%w: line %d: unterminated string", ErrSyntax, line)
				}
				toks = append(toks, token{text: s[i+1 : i+1+end], quoted: true, line: line})
				i += end + 2
			default:
				j := i
				for j < len(s) && !strings.ContainsRune("{}:#'\" \t\r", rune(s[j])) {
					j++
				}
				toks = append(toks, token{text: s[i:j], line: line})
				i = j
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read label map: %w", err)
	}
	return toks, nil
}
