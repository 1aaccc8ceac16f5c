package book

import "strings"

// CanonicalISBN strips spaces and hyphens and upper-cases a trailing check character.
func CanonicalISBN(isbn string) string {
	isbn = strings.TrimSpace(isbn)
	isbn = strings.NewReplacer("-", "", " ", "").Replace(isbn)
	return strings.ToUpper(isbn)
}

// ValidISBN reports whether isbn, already in canonical form, carries a correct ISBN-10 or ISBN-13 checksum.
func ValidISBN(isbn string) bool {
	switch len(isbn) {
	case 10:
		return validISBN10(isbn)
	case 13:
		return validISBN13(isbn)
	default:
		return false
	}
}

func validISBN10(isbn string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		c := isbn[i]
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c == 'X' && i == 9:
			d = 10
		default:
			return false
		}
		sum += (10 - i) * d
	}
	return sum%11 == 0
}

func validISBN13(isbn string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		c := isbn[i]
		if c < '0' || c > '9' {
			return false
		}
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += weight * int(c-'0')
	}
	return sum%10 == 0
}
