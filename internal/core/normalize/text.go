package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagsRe  = regexp.MustCompile(`<[^>]*>`)
	linksRe = regexp.MustCompile(`https?://\S+`)
)

// Title чистит наименование товара из каталога маркетплейса: HTML-сущности и теги, ссылки,
// лишние пробелы. Длинное наименование обрезается по границе слова до limit символов.
func Title(input string, limit int) string {
	cleaned := tagsRe.ReplaceAllString(html.UnescapeString(input), " ")
	cleaned = linksRe.ReplaceAllString(cleaned, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if limit <= 0 || utf8.RuneCountInString(cleaned) <= limit {
		return cleaned
	}
	return reduceToLength(cleaned, limit)
}

func reduceToLength(input string, limit int) string {
	var builder strings.Builder
	total := 0
	for i, word := range strings.Fields(input) {
		n := utf8.RuneCountInString(word)
		if i > 0 {
			n++
		}
		if total+n > limit {
			break
		}
		if i > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(word)
		total += n
	}
	if builder.Len() == 0 {
		// одно слово длиннее лимита
		return string([]rune(input)[:limit])
	}
	return builder.String()
}
