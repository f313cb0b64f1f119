package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lithammer/dedent"
)

// listingURLRe matches links to listings on the supported sites, including
// regional subdomains such as kazan.drom.ru.
var listingURLRe = regexp.MustCompile(`https?://(?:[a-z0-9-]+\.)*(?:avito|auto|drom)\.ru/[^\s<>"]*`)

var anyURLRe = regexp.MustCompile(`https?://[^\s<>"]+`)

func formatReplyText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

// parseCommand splits "/cmd@botname arg1 arg2" into "/cmd" and its arguments.
func parseCommand(s string) (string, []string) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return "", nil
	}
	cmd, _, _ := strings.Cut(parts[0], "@")
	return cmd, parts[1:]
}

// findListingURL returns the first supported listing link in text.
func findListingURL(text string) string {
	return strings.TrimRight(listingURLRe.FindString(text), ".,;)")
}

// findAnyURL returns the first link in text.
func findAnyURL(text string) string {
	return strings.TrimRight(anyURLRe.FindString(text), ".,;)")
}

// escapeMarkdown escapes special characters for Telegram Markdown V1
func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "*", "\\*")
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "`", "\\`")
	text = strings.ReplaceAll(text, "[", "\\[")
	return text
}

// markdownLinkURL percent-encodes the parentheses that would end a Markdown
// link target early.
func markdownLinkURL(u string) string {
	return strings.NewReplacer("(", "%28", ")", "%29").Replace(u)
}

// plainText turns a Markdown message into text readable without a parse
// mode: emphasis markers are dropped, escapes are undone and links become
// "label: url".
func plainText(markdown string) string {
	runes := []rune(markdown)
	var sb strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes) && strings.ContainsRune("*_`[", runes[i+1]):
			sb.WriteRune(runes[i+1])
			i++
		case r == ']' && i+1 < len(runes) && runes[i+1] == '(':
			end := i + 2
			for end < len(runes) && runes[end] != ')' {
				end++
			}
			sb.WriteString(": ")
			sb.WriteString(string(runes[i+2 : end]))
			i = end
		case r == '*' || r == '_' || r == '`' || r == '[':
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// formatThousands groups digits by three with spaces: 1234567 -> "1 234 567".
func formatThousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatPrice(price int) string {
	if price <= 0 {
		return "не указана"
	}
	return formatThousands(price) + " руб."
}

func formatMileage(km int) string {
	if km <= 0 {
		return "не указан"
	}
	return formatThousands(km) + " км"
}
