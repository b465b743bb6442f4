package world

import (
	"fmt"
	"strings"
)

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// FormatNoun renders a noun with its count for room listings and
// inventories:
//
//	count == 1: "a/an X" (article only if defaultArticle) or just "X"
//	count  > 1: "N Xs"
func FormatNoun(name string, count int, defaultArticle bool) string {
	if count == 1 {
		if defaultArticle && len(name) > 0 {
			article := "a"
			if isVowel(name[0]) {
				article = "an"
			}
			return article + " " + name
		}
		return name
	}
	return fmt.Sprintf("%d %ss", count, name)
}

// DescribeRoomObjects renders the object-listing lines for GETROOMDESC:
// one "There is/are ..." sentence per distinct, non-hidden, listed object
// whose canonical name equals its multimap key.
func DescribeRoomObjects(objs *Multimap) []string {
	var lines []string
	for _, key := range objs.Keys() {
		list, n := objs.Lookup(key)
		if n == 0 {
			continue
		}
		first := list[0]
		if first.Hidden || !first.List || first.Name != key {
			continue
		}
		var sb strings.Builder
		if n == 1 {
			sb.WriteString("There is ")
		} else {
			sb.WriteString("There are ")
		}
		sb.WriteString(FormatNoun(key, n, first.DefaultArticle))
		sb.WriteString(" here.")
		lines = append(lines, sb.String())
	}
	return lines
}
