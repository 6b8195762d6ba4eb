// Package rank maps free-text job titles to the ordinal rank (1..5) used to
// gate event visibility and registration.
package rank

import "strings"

const (
	// DefaultUnknown is assigned when there is no profile at all.
	DefaultUnknown = 1
	// DefaultKnown is assigned to a registered employee whose title matches
	// no keyword family.
	DefaultKnown = 2

	Max = 5
)

type family struct {
	rank     int
	keywords []string
}

// Families are evaluated in order; the first match wins, so a title
// containing keywords from several families is never ambiguous. The junior
// family sits above the mid family: mid keywords are generic profession
// nouns ("разработчик", "engineer") that also appear inside junior titles,
// and a "Junior разработчик" must land at 1, not 2.
var families = []family{
	{5, []string{
		"директор", "director", "ceo", "cto", "cio", "vp", "vice president",
		"руководитель департамента", "владелец", "owner", "глава",
	}},
	{4, []string{
		"руководитель", "team lead", "teamlead", "тимлид", "head",
		"начальник", "lead manager", "менеджер проектов", "project manager",
	}},
	{3, []string{
		"senior", "сеньор", "старший", "ведущий", "lead", "principal",
		"архитектор", "architect", "эксперт",
	}},
	{1, []string{
		"junior", "джуниор", "младший", "стажер", "стажёр", "intern",
		"trainee", "практикант",
	}},
	{2, []string{
		"middle", "миддл", "разработчик", "developer", "инженер", "engineer",
		"аналитик", "analyst", "специалист", "manager", "менеджер",
	}},
}

// Resolve returns the rank for a job title. It is total: any input, including
// the empty string, yields a value in [1,5].
func Resolve(position string) int {
	p := strings.ToLower(strings.TrimSpace(position))
	if p == "" {
		return DefaultKnown
	}
	for _, f := range families {
		for _, kw := range f.keywords {
			if strings.Contains(p, kw) {
				return f.rank
			}
		}
	}
	return DefaultKnown
}

// ResolveProfile resolves the rank for a possibly missing profile. An absent
// profile gets the most restrictive default.
func ResolveProfile(position *string) int {
	if position == nil {
		return DefaultUnknown
	}
	return Resolve(*position)
}
