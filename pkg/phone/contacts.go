package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Number номер из адресной книги устройства
type Number struct {
	Number string `json:"number"`
	Label  string `json:"label"`
}

// Contact контакт из адресной книги устройства
type Contact struct {
	PhoneNumbers []Number `json:"phoneNumbers"`
}

// Pick выбирает первый номер с меткой mobile, иначе первый номер
func (c Contact) Pick() (string, bool) {
	if len(c.PhoneNumbers) == 0 {
		return "", false
	}
	for _, n := range c.PhoneNumbers {
		if strings.EqualFold(strings.TrimSpace(n.Label), "mobile") {
			return n.Number, true
		}
	}
	return c.PhoneNumbers[0].Number, true
}

// Normalize разбирает номер с подсказкой региона и возвращает E.164
func Normalize(raw, region string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// NormalizeContacts выбирает номер каждого контакта и нормализует его.
// Неразборчивые номера отбрасываются, дубликаты схлопываются.
func NormalizeContacts(contacts []Contact, region string) []string {
	seen := make(map[string]bool, len(contacts))
	result := make([]string, 0, len(contacts))
	for _, c := range contacts {
		raw, ok := c.Pick()
		if !ok {
			continue
		}
		e164, ok := Normalize(raw, region)
		if !ok || seen[e164] {
			continue
		}
		seen[e164] = true
		result = append(result, e164)
	}
	return result
}

// NormalizeAll нормализует список номеров, отбрасывая неразборчивые
func NormalizeAll(numbers []string, region string) []string {
	contacts := make([]Contact, len(numbers))
	for i, n := range numbers {
		contacts[i] = Contact{PhoneNumbers: []Number{{Number: n}}}
	}
	return NormalizeContacts(contacts, region)
}
