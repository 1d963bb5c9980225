package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cmc-python/modelmachine/internal/xlate"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/numio"
	"github.com/cmc-python/modelmachine/word"
)

// ErrSourceSyntax is returned by ParseSource for any line that violates
// the .mmach grammar; the wrapped error names the line and its text.
type ErrSourceSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (e *ErrSourceSyntax) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.LineNo, e.Line, e.Err)
}

func (e *ErrSourceSyntax) Unwrap() error { return e.Err }

var (
	errMissingCPU       = fmt.Errorf(xlate.From("missing .cpu directive"))
	errUnknownMachine   = fmt.Errorf(xlate.From("unknown machine id"))
	errDuplicateCPU     = fmt.Errorf(xlate.From("duplicate .cpu directive"))
	errOutsideCode      = fmt.Errorf(xlate.From("hex data outside a .code section"))
	errIncompleteWord   = fmt.Errorf(xlate.From("incomplete word"))
	errBadHexDigit      = fmt.Errorf(xlate.From("invalid hex digit"))
	errBadAddress       = fmt.Errorf(xlate.From("invalid address"))
	errUnknownDirective = fmt.Errorf(xlate.From("unknown directive"))
)

// ParseSource reads the .mmach source text format: a first ".cpu <id>"
// line, then any number of ".input"/".output" binding lines, an optional
// ".enter" line, and one or more ".code [ADDR]" sections each followed by
// hex digit lines. ';' begins a line comment; blank lines are ignored.
func ParseSource(r io.Reader) (Program, error) {
	p := Program{}
	var cfg machine.Config
	sawCPU := false
	inCode := false
	var codeAddr uint32
	var wordHexLen int
	var cellBytes uint32

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(stripSourceComment(raw))
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		directive := fields[0]

		switch {
		case !sawCPU:
			if directive != ".cpu" {
				return Program{}, &ErrSourceSyntax{lineNo, raw, errMissingCPU}
			}
			if len(fields) != 2 {
				return Program{}, &ErrSourceSyntax{lineNo, raw, errUnknownMachine}
			}
			c, ok := machine.Registry[fields[1]]
			if !ok {
				return Program{}, &ErrSourceSyntax{lineNo, raw, errUnknownMachine}
			}
			cfg = c
			p.MachineID = fields[1]
			wordHexLen = int(cfg.CellBits) / 4
			cellBytes = uint32(cfg.CellBits) / 8
			sawCPU = true

		case directive == ".cpu":
			return Program{}, &ErrSourceSyntax{lineNo, raw, errDuplicateCPU}

		case directive == ".input", directive == ".output":
			addrs, help, err := parseBindingLine(line[len(directive):])
			if err != nil {
				return Program{}, &ErrSourceSyntax{lineNo, raw, err}
			}
			for _, a := range addrs {
				b := Binding{Address: a, Help: help}
				if directive == ".input" {
					p.Inputs = append(p.Inputs, b)
				} else {
					p.Outputs = append(p.Outputs, b)
				}
			}

		case directive == ".enter":
			vals, err := parseEnterLine(line[len(directive):])
			if err != nil {
				return Program{}, &ErrSourceSyntax{lineNo, raw, err}
			}
			p.Enter = append(p.Enter, vals...)

		case directive == ".code":
			// A bare ".code" always starts at address 0, same convention
			// asm's ".code" directive uses; a following section must name
			// its own address explicitly rather than continue implicitly.
			inCode = true
			if len(fields) > 1 {
				addr, err := strconv.ParseUint(fields[1], 0, 32)
				if err != nil {
					return Program{}, &ErrSourceSyntax{lineNo, raw, errBadAddress}
				}
				codeAddr = uint32(addr)
			} else {
				codeAddr = 0
			}

		case strings.HasPrefix(directive, "."):
			return Program{}, &ErrSourceSyntax{lineNo, raw, errUnknownDirective}

		default:
			if !inCode {
				return Program{}, &ErrSourceSyntax{lineNo, raw, errOutsideCode}
			}
			bytes, err := decodeHexWords(line, wordHexLen)
			if err != nil {
				return Program{}, &ErrSourceSyntax{lineNo, raw, err}
			}
			p.Spans = append(p.Spans, Span{Address: codeAddr, Bytes: bytes})
			codeAddr += uint32(len(bytes)) / cellBytes
		}
	}
	if err := scanner.Err(); err != nil {
		return Program{}, err
	}
	if !sawCPU {
		return Program{}, &ErrSourceSyntax{0, "", errMissingCPU}
	}
	return p, nil
}

// stripSourceComment drops everything from the first ';' onward.
func stripSourceComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

// parseBindingLine parses "ADDR[, ADDR…] [prompt]" into the address list
// and a shared help string, the last comma-separated token carrying both
// its own address and any trailing free-text prompt.
func parseBindingLine(rest string) ([]uint32, string, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, "", fmt.Errorf(xlate.From("missing address list"))
	}
	parts := strings.Split(rest, ",")
	addrs := make([]uint32, 0, len(parts))
	help := ""
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if i < len(parts)-1 {
			a, err := strconv.ParseUint(part, 0, 32)
			if err != nil {
				return nil, "", errBadAddress
			}
			addrs = append(addrs, uint32(a))
			continue
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			return nil, "", errBadAddress
		}
		a, err := strconv.ParseUint(fields[0], 0, 32)
		if err != nil {
			return nil, "", errBadAddress
		}
		addrs = append(addrs, uint32(a))
		help = strings.Join(fields[1:], " ")
	}
	return addrs, help, nil
}

// parseEnterLine splits a ".enter" line's remainder on commas and/or
// whitespace into signed numeric literals via numio's decimal/hex parser.
func parseEnterLine(rest string) ([]int64, error) {
	rest = strings.ReplaceAll(rest, ",", " ")
	fields := strings.Fields(rest)
	vals := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := numio.ParseLiteral(f)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// decodeHexWords packs a line's hex digits (whitespace removed) into
// wordHexLen-digit groups, one per addressable memory cell, and returns
// their big-endian bytes in order. A line whose digit count is not a
// multiple of wordHexLen is rejected: the grammar requires one or more
// complete cells per .code data line, never a half-written one.
func decodeHexWords(line string, wordHexLen int) ([]byte, error) {
	digits := strings.ReplaceAll(line, " ", "")
	digits = strings.ReplaceAll(digits, "\t", "")
	if len(digits)%wordHexLen != 0 {
		return nil, errIncompleteWord
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += wordHexLen {
		group := digits[i : i+wordHexLen]
		v, err := strconv.ParseUint(group, 16, 64)
		if err != nil {
			return nil, errBadHexDigit
		}
		out = append(out, word.New(uint(wordHexLen*4), v).ToBytesBE()...)
	}
	return out, nil
}
