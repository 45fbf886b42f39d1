package grocery

import "strings"

// PhoneSeparator joins phone numbers into the single stored column.
const PhoneSeparator = ", "

// JoinPhones gives the stored form of a list of phone numbers. A number that
// itself contains a comma will not split back out the same way.
func JoinPhones(phones []string) string {
	return strings.Join(phones, PhoneSeparator)
}

// SplitPhones gives the list form of a stored phone column. Segments are
// trimmed and empty ones dropped. If that leaves nothing but raw is not empty,
// raw is returned as the only element so that values stored before the
// separator was used are not lost.
func SplitPhones(raw string) []string {
	phones := []string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			phones = append(phones, p)
		}
	}

	if len(phones) == 0 && raw != "" {
		return []string{raw}
	}
	return phones
}
