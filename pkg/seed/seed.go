// Package seed generates synthetic association members and near-duplicates
// of them for exercising the matcher.
package seed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/Ramsey-B/clover/pkg/models"
)

var (
	statuses    = []string{"active", "lapsed", "inactive", "pending"}
	memberTypes = []string{"individual", "agency", "corporate", "student", "retired"}
	emailHosts  = []string{"gmail.com", "yahoo.com", "outlook.com", "insurance.com", "benefits.com", "broker.com"}
	areaCodes   = []int{202, 212, 213, 214, 215, 216, 281, 303, 305, 312, 404, 415, 469, 470, 512, 602, 612, 702, 713, 718, 770, 972}
	companies   = []string{"Insurance Agency", "Benefits Consulting Firm", "Independent Practice", "Brokerage House", "Employee Benefits Group"}

	zipPrefixes = map[string][]string{
		"CA": {"900", "901", "902", "903", "904"},
		"TX": {"750", "751", "752", "753", "754"},
		"FL": {"320", "321", "322", "323", "324"},
		"NY": {"100", "101", "102", "103", "104"},
		"PA": {"150", "151", "152", "153", "154"},
	}
	states = []string{"CA", "TX", "FL", "NY", "PA"}
)

// Columns is the CSV column order of a member
var Columns = []string{"id", "first_name", "last_name", "email", "phone", "zip_code", "state", "status", "member_type", "chapter", "company_name"}

// Member is one synthetic association member
type Member struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	ZipCode     string `json:"zip_code"`
	State       string `json:"state"`
	Status      string `json:"status"`
	MemberType  string `json:"member_type"`
	Chapter     string `json:"chapter"`
	CompanyName string `json:"company_name"`
}

func (m Member) values() []string {
	return []string{m.ID, m.FirstName, m.LastName, m.Email, m.Phone, m.ZipCode, m.State, m.Status, m.MemberType, m.Chapter, m.CompanyName}
}

// Row returns the member as a raw import row
func (m Member) Row() map[string]any {
	values := m.values()
	row := make(map[string]any, len(Columns))
	for i, c := range Columns {
		row[c] = values[i]
	}
	return row
}

// Options controls generation
type Options struct {
	Count         int
	DuplicateRate float64
	Chapters      int
	Seed          int64
}

// Dataset is a generated population plus near-duplicates of some of its members
type Dataset struct {
	Members    []Member
	Duplicates []Member
	// SourceOf maps a duplicate id to the member it was derived from
	SourceOf map[string]string
}

// Generate builds a deterministic dataset for a seed
func Generate(opts Options) Dataset {
	faker := gofakeit.New(opts.Seed)
	if opts.Chapters <= 0 {
		opts.Chapters = 20
	}

	d := Dataset{
		Members:  make([]Member, 0, opts.Count),
		SourceOf: map[string]string{},
	}
	emails := map[string]bool{}
	for i := 0; i < opts.Count; i++ {
		d.Members = append(d.Members, newMember(faker, i, opts.Chapters, emails))
	}

	dupCount := int(float64(opts.Count) * opts.DuplicateRate)
	for i := 0; i < dupCount && opts.Count > 0; i++ {
		source := d.Members[faker.Number(0, opts.Count-1)]
		dup := mutate(faker, source)
		dup.ID = fmt.Sprintf("dup-%05d", i+1)
		d.Duplicates = append(d.Duplicates, dup)
		d.SourceOf[dup.ID] = source.ID
	}
	return d
}

func newMember(faker *gofakeit.Faker, i, chapters int, emails map[string]bool) Member {
	first := faker.FirstName()
	last := faker.LastName()
	state := states[faker.Number(0, len(states)-1)]
	prefixes := zipPrefixes[state]

	base := strings.ToLower(first) + "." + strings.ToLower(last)
	host := emailHosts[i%len(emailHosts)]
	email := base + "@" + host
	for n := 1; emails[email]; n++ {
		email = fmt.Sprintf("%s%d@%s", base, n, host)
	}
	emails[email] = true

	return Member{
		ID:          fmt.Sprintf("mem-%05d", i+1),
		FirstName:   first,
		LastName:    last,
		Email:       email,
		Phone:       fmt.Sprintf("(%d) %d-%04d", areaCodes[faker.Number(0, len(areaCodes)-1)], faker.Number(200, 999), faker.Number(0, 9999)),
		ZipCode:     prefixes[faker.Number(0, len(prefixes)-1)] + fmt.Sprintf("%02d", faker.Number(0, 99)),
		State:       state,
		Status:      status(faker.Float64()),
		MemberType:  memberTypes[faker.Number(0, len(memberTypes)-1)],
		Chapter:     fmt.Sprintf("chapter-%02d", faker.Number(1, chapters)),
		CompanyName: last + " " + companies[faker.Number(0, len(companies)-1)],
	}
}

// 90% active, 5% lapsed, 3% inactive, 2% pending
func status(r float64) string {
	switch {
	case r < 0.90:
		return statuses[0]
	case r < 0.95:
		return statuses[1]
	case r < 0.98:
		return statuses[2]
	}
	return statuses[3]
}

// mutate applies the edits seen in real re-imports: a first-name typo, a
// reformatted phone and a re-cased email. Each edit is applied independently.
func mutate(faker *gofakeit.Faker, m Member) Member {
	dup := m
	if faker.Bool() {
		dup.FirstName = typo(faker, m.FirstName)
	}
	if faker.Bool() {
		dup.Phone = digits(m.Phone)
	}
	if faker.Bool() {
		dup.Email = strings.ToUpper(m.Email[:1]) + m.Email[1:]
	}
	if dup == m {
		dup.FirstName = typo(faker, m.FirstName)
	}
	return dup
}

// typo swaps two adjacent letters
func typo(faker *gofakeit.Faker, s string) string {
	r := []rune(s)
	if len(r) < 3 {
		return s + "e"
	}
	i := faker.Number(1, len(r)-2)
	r[i], r[i+1] = r[i+1], r[i]
	if string(r) == s {
		return s[:len(s)-1]
	}
	return string(r)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Records converts members to records keyed by their ids
func Records(members []Member) []models.Record {
	records := make([]models.Record, len(members))
	for i, m := range members {
		records[i] = models.NewRecord(m.ID, m.Row())
	}
	return records
}

// WriteCSV writes members with a header row
func WriteCSV(w io.Writer, members []Member) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, m := range members {
		if err := cw.Write(m.values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Recall is the share of injected duplicates whose source member was
// reported. rows must be in the order of d.Duplicates.
func Recall(d Dataset, rows []models.RowResult) float64 {
	if len(d.Duplicates) == 0 {
		return 1
	}
	found := 0
	for _, r := range rows {
		if r.Row < 0 || r.Row >= len(d.Duplicates) {
			continue
		}
		want := d.SourceOf[d.Duplicates[r.Row].ID]
		for _, dup := range r.Duplicates {
			if dup.ExistingID == want {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(d.Duplicates))
}

// MemberConfiguration is a reasonable match configuration for generated members
func MemberConfiguration() models.MatchConfiguration {
	return models.MatchConfiguration{
		Fields: []models.FieldSpec{
			{Field: "first_name", Type: models.FieldTypeText, Weight: 1},
			{Field: "last_name", Type: models.FieldTypeText, Weight: 1, Required: true},
			{Field: "email", Type: models.FieldTypeEmail, Weight: 2},
			{Field: "phone", Type: models.FieldTypePhone, Weight: 2},
		},
		Threshold:           0.75,
		BlockingField:       "last_name",
		BlockingNormalizers: []string{"soundex"},
	}
}
