// Package prompt expands /name slash commands into registered prompt
// templates.
//
// Placeholders, in the order they are resolved:
//
//	${@:N:L}   L arguments starting at argument N (1-based)
//	${@:N}     all arguments from argument N on
//	$ARGUMENTS all arguments joined by a space
//	$@         same as $ARGUMENTS
//	$N         argument N, or "" when missing
package prompt

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	sliceWithLengthRE = regexp.MustCompile(`\$\{@:(\d+):(\d+)\}`)
	sliceFromRE       = regexp.MustCompile(`\$\{@:(\d+)\}`)
	positionalRE      = regexp.MustCompile(`\$(\d+)`)
)

// Tokenize splits an argument string on whitespace, keeping "double" and
// 'single' quoted runs together. An unterminated quote absorbs the rest of
// the input.
func Tokenize(s string) []string {
	args := []string{}
	var current strings.Builder
	var quote rune

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}

// Substitute fills the placeholders of body with args.
func Substitute(body string, args []string) string {
	out := sliceWithLengthRE.ReplaceAllStringFunc(body, func(m string) string {
		sub := sliceWithLengthRE.FindStringSubmatch(m)
		start := startIndex(sub[1])
		length, _ := strconv.Atoi(sub[2])
		if start >= len(args) {
			return ""
		}
		end := min(start+length, len(args))
		return strings.Join(args[start:end], " ")
	})

	out = sliceFromRE.ReplaceAllStringFunc(out, func(m string) string {
		sub := sliceFromRE.FindStringSubmatch(m)
		start := startIndex(sub[1])
		if start >= len(args) {
			return ""
		}
		return strings.Join(args[start:], " ")
	})

	all := strings.Join(args, " ")
	out = strings.ReplaceAll(out, "$ARGUMENTS", all)
	out = strings.ReplaceAll(out, "$@", all)

	return positionalRE.ReplaceAllStringFunc(out, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil || n < 1 || n > len(args) {
			return ""
		}
		return args[n-1]
	})
}

// startIndex converts a 1-based position to a slice index, clamping at 0.
func startIndex(s string) int {
	n, _ := strconv.Atoi(s)
	if n < 1 {
		return 0
	}
	return n - 1
}

// SplitCommand separates "/name rest of line" into name and argument text.
// ok is false when input is not a slash command.
func SplitCommand(input string) (name, rest string, ok bool) {
	if !strings.HasPrefix(input, "/") {
		return "", "", false
	}
	line := input[1:]
	if idx := strings.IndexAny(line, " \t\n"); idx >= 0 {
		return line[:idx], strings.TrimLeft(line[idx:], " \t\n"), true
	}
	return line, "", true
}
