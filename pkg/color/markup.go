package color

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/remud/remud/pkg/log"
)

// tagPattern recognizes every inline markup tag in one greedy, longest-match
// regex, mirroring the single-pass regex the source parser used: `||` (an
// escaped literal bar), `|NNN|` (a 0-255 palette index), `|#RRGGBB|` (a true
// color), `|name|` (a named palette color), and `|-|` (pop).
var tagPattern = regexp.MustCompile(
	`(?P<escape>\|\|)` +
		`|\|(?P<byte>(1?[0-9]{1,2})|(2[0-4][0-9])|(25[0-5]))\|` +
		`|\|#(?P<true>[0-9a-fA-F]{6})\|` +
		`|\|(?P<name>[[:alnum:]]+)\|` +
		`|(?P<clear>\|-\|)`,
)

// rgb is a fully resolved color, before any terminal-mode downgrade is
// applied.
type rgb struct{ r, g, b uint8 }

func rgbFromU32(v uint32) rgb {
	return rgb{r: uint8(v >> 16), g: uint8(v >> 8), b: uint8(v)}
}

func (c rgb) hex() string {
	return fmt.Sprintf("%02x%02x%02x", c.r, c.g, c.b)
}

// distanceSquared is the squared-RGB metric used for the true->256
// cube/gray downgrade.
func (c rgb) distanceSquared(o rgb) int {
	dr := int(c.r) - int(o.r)
	dg := int(c.g) - int(o.g)
	db := int(c.b) - int(o.b)
	return dr*dr + dg*dg + db*db
}

func (c rgb) grayAverage() uint8 {
	return uint8((int(c.r) + int(c.g) + int(c.b)) / 3)
}

func cubeIndex(v uint8) uint8 {
	switch {
	case v < 48:
		return 0
	case v < 114:
		return 1
	default:
		return (v - 35) / 40
	}
}

func (c rgb) cubeIndices() (uint8, uint8, uint8) {
	return cubeIndex(c.r), cubeIndex(c.g), cubeIndex(c.b)
}

// to256 finds the closest 256-palette index for c by the same
// closest-cube-or-gray comparison the source performs: try the exact 6x6x6
// cube match first, then compare the nearest cube color against the nearest
// gray by squared distance and take whichever is closer.
func (c rgb) to256() uint8 {
	qr, qg, qb := c.cubeIndices()
	cr, cg, cb := cubeToColorValue[qr], cubeToColorValue[qg], cubeToColorValue[qb]

	if c.r == cr && c.g == cg && c.b == cb {
		return cubeOffset + 36*qr + 6*qb + qg
	}

	grayAvg := c.grayAverage()
	var grayIndex uint8
	if grayAvg > 238 {
		grayIndex = 23
	} else {
		grayIndex = (grayAvg - 3) / 10
	}
	gray := rgb{r: 8 + 10*grayIndex, g: 8 + 10*grayIndex, b: 8 + 10*grayIndex}

	cubeColor := rgb{r: cr, g: cg, b: cg} // faithful to the source: the blue channel here is cg, not cb
	if gray.distanceSquared(c) < cubeColor.distanceSquared(c) {
		return grayOffset + grayIndex
	}
	return cubeOffset + 36*qr + 6*qb + qg
}

// rendered is the ANSI escape sequence for one resolved color at a given
// downgrade level, or "" if mode suppresses color entirely.
func rendered(c rgb, mode Mode) string {
	switch mode {
	case ModeNone:
		return ""
	case Mode16:
		idx16 := colors256To16[c.to256()]
		if idx16 < 8 {
			return fmt.Sprintf("\x1b[%dm", idx16+30)
		}
		return fmt.Sprintf("\x1b[%dm", idx16-8+90)
	case Mode256:
		return fmt.Sprintf("\x1b[38;5;%dm", c.to256())
	case ModeTrueColor:
		return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", c.r, c.g, c.b)
	default:
		return ""
	}
}

// Render rewrites every markup tag in msg into ANSI escapes appropriate for
// mode, pushing/popping a color stack as `|-|` tags are encountered. Every
// well-formed open tag pushes a stack entry regardless of whether mode can
// render it, so a later `|-|` still resumes whatever color (if any) was
// open before it; an unmatched `|-|` (nothing left to pop) is a no-op.
// Unknown tag names are logged and dropped.
func Render(msg string, mode Mode) string {
	var out strings.Builder
	// stack holds, per open tag, the ANSI sequence that tag rendered to, or
	// "" if the tag was well-formed but mode couldn't render it (ModeNone,
	// or an unknown name).
	var stack []string
	closed := true
	supportsColor := mode != ModeNone

	matches := tagPattern.FindAllStringSubmatchIndex(msg, -1)
	last := 0
	names := tagPattern.SubexpNames()

	emit := func(text string) { out.WriteString(text) }

	push := func(seq string) {
		stack = append(stack, seq)
		if seq != "" {
			emit(seq)
			closed = false
		}
	}

	for _, m := range matches {
		emit(msg[last:m[0]])
		last = m[1]

		group := func(name string) (string, bool) {
			for i, n := range names {
				if n != name {
					continue
				}
				if m[2*i] < 0 {
					return "", false
				}
				return msg[m[2*i]:m[2*i+1]], true
			}
			return "", false
		}

		switch {
		case func() bool { _, ok := group("escape"); return ok }():
			emit("|")
		case func() bool { _, ok := group("byte"); return ok }():
			text, _ := group("byte")
			n, err := strconv.Atoi(text)
			if err != nil || n < 0 || n > 255 {
				log.Logger.Warn().Str("tag", text).Msg("color: malformed 256 color tag, dropped")
				push("")
				continue
			}
			push(rendered(rgbFromU32(colors256[n]), mode))
		case func() bool { _, ok := group("true"); return ok }():
			text, _ := group("true")
			n, err := strconv.ParseUint(text, 16, 32)
			if err != nil {
				log.Logger.Warn().Str("tag", text).Msg("color: malformed true color tag, dropped")
				push("")
				continue
			}
			push(rendered(rgbFromU32(uint32(n)), mode))
		case func() bool { _, ok := group("name"); return ok }():
			text, _ := group("name")
			idx, ok := colorNames[strings.ToLower(text)]
			if !ok {
				log.Logger.Debug().Str("tag", text).Msg("color: unknown color name, dropped")
				push("")
				continue
			}
			push(rendered(rgbFromU32(colors256[idx]), mode))
		case func() bool { _, ok := group("clear"); return ok }():
			if !supportsColor || len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				closed = true
				emit(clearSeq)
			} else if prev := stack[len(stack)-1]; prev != "" {
				emit(prev)
			}
		}
	}
	emit(msg[last:])

	if !closed {
		out.WriteString(clearSeq)
	}
	return out.String()
}

// Hex returns the `#RRGGBB` hex string for the 256-palette index idx,
// useful for the web/HTML rendering path a browser client would use; kept
// here since it shares the same colors256 table as terminal rendering.
func Hex(idx uint8) string {
	return rgbFromU32(colors256[idx]).hex()
}
