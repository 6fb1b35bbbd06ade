package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Facts is the set of named legal facts extracted from a document. Every field
// is optional free text; dates and amounts are not parsed.
type Facts struct {
	// Case
	CaseNumber *string `json:"caseNumber,omitempty"`
	Court      *string `json:"court,omitempty"`
	Judge      *string `json:"judge,omitempty"`
	FilingDate *string `json:"filingDate,omitempty"`
	// Parties
	PetitionerName    *string `json:"petitionerName,omitempty"`
	PetitionerAddress *string `json:"petitionerAddress,omitempty"`
	PetitionerPhone   *string `json:"petitionerPhone,omitempty"`
	RespondentName    *string `json:"respondentName,omitempty"`
	RespondentAddress *string `json:"respondentAddress,omitempty"`
	RespondentPhone   *string `json:"respondentPhone,omitempty"`
	// Marriage
	MarriageDate   *string `json:"marriageDate,omitempty"`
	SeparationDate *string `json:"separationDate,omitempty"`
	// Attorney
	AttorneyName    *string `json:"attorneyName,omitempty"`
	AttorneyAddress *string `json:"attorneyAddress,omitempty"`
	AttorneyPhone   *string `json:"attorneyPhone,omitempty"`
	AttorneyEmail   *string `json:"attorneyEmail,omitempty"`
	// Federal civil and appellate
	AppellantName        *string `json:"appelantName,omitempty"`
	JudgmentType         *string `json:"judgmentType,omitempty"`
	JudgmentDate         *string `json:"judgmentDate,omitempty"`
	ClientName           *string `json:"clientName,omitempty"`
	ApplicantName        *string `json:"applicantName,omitempty"`
	ApplicantAddress     *string `json:"applicantAddress,omitempty"`
	ApplicantPhone       *string `json:"applicantPhone,omitempty"`
	BarState             *string `json:"barState,omitempty"`
	AdmissionDate        *string `json:"admissionDate,omitempty"`
	LocalCounselName     *string `json:"localCounselName,omitempty"`
	LocalCounselFirm     *string `json:"localCounselFirm,omitempty"`
	LocalCounselAddress  *string `json:"localCounselAddress,omitempty"`
	LocalCounselPhone    *string `json:"localCounselPhone,omitempty"`
	LocalCounselEmail    *string `json:"localCounselEmail,omitempty"`
	MonthlyIncome        *string `json:"monthlyIncome,omitempty"`
	MonthlyExpenses      *string `json:"monthlyExpenses,omitempty"`
	CashOnHand           *string `json:"cashOnHand,omitempty"`
	PropertyDescription  *string `json:"propertyDescription,omitempty"`
	EmploymentStatus     *string `json:"employmentStatus,omitempty"`
	JurisdictionBasis    *string `json:"jurisdictionBasis,omitempty"`
	VenueBasis           *string `json:"venueBasis,omitempty"`
	PlaintiffDescription *string `json:"plaintiffDescription,omitempty"`
	DefendantDescription *string `json:"defendantDescription,omitempty"`
	ClaimStatement       *string `json:"claimStatement,omitempty"`
	DamageAmount         *string `json:"damageAmount,omitempty"`
	// Criminal
	DefendantName             *string `json:"defendantName,omitempty"`
	ArrestDate                *string `json:"arrestDate,omitempty"`
	InitialAppearanceDate     *string `json:"initialAppearanceDate,omitempty"`
	ReasonForExclusion        *string `json:"reasonForExclusion,omitempty"`
	JustificationForExclusion *string `json:"justificationForExclusion,omitempty"`
	StartDate                 *string `json:"startDate,omitempty"`
	EndDate                   *string `json:"endDate,omitempty"`
	ProsecutorName            *string `json:"prosecutorName,omitempty"`
	ProsecutorAddress         *string `json:"prosecutorAddress,omitempty"`
	ProsecutorPhone           *string `json:"prosecutorPhone,omitempty"`
	DefenseAttorneyName       *string `json:"defenseAttorneyName,omitempty"`
	DefenseAttorneyAddress    *string `json:"defenseAttorneyAddress,omitempty"`
	DefenseAttorneyPhone      *string `json:"defenseAttorneyPhone,omitempty"`
	// Subpoena
	WitnessName       *string `json:"witnessName,omitempty"`
	WitnessAddress    *string `json:"witnessAddress,omitempty"`
	CourtLocation     *string `json:"courtLocation,omitempty"`
	HearingDate       *string `json:"hearingDate,omitempty"`
	HearingTime       *string `json:"hearingTime,omitempty"`
	DocumentsRequired *string `json:"documentsRequired,omitempty"`
	// Related cases
	RelatedCaseName         *string `json:"relatedCaseName,omitempty"`
	RelatedCaseNumber       *string `json:"relatedCaseNumber,omitempty"`
	RelatedCaseJudge        *string `json:"relatedCaseJudge,omitempty"`
	RelationshipDescription *string `json:"relationshipDescription,omitempty"`
	ReasonForRelation       *string `json:"reasonForRelation,omitempty"`
	// Custody and protection orders
	ChildName             *string `json:"childName,omitempty"`
	ChildBirthDate        *string `json:"childBirthDate,omitempty"`
	CustodyBasis          *string `json:"custodyBasis,omitempty"`
	CustodyRequest        *string `json:"custodyRequest,omitempty"`
	Relationship          *string `json:"relationship,omitempty"`
	AbuseDescription      *string `json:"abuseDescription,omitempty"`
	AbuseDate             *string `json:"abuseDate,omitempty"`
	AbuseLocation         *string `json:"abuseLocation,omitempty"`
	HarassmentDescription *string `json:"harassmentDescription,omitempty"`
	HarassmentDate        *string `json:"harassmentDate,omitempty"`
	HarassmentLocation    *string `json:"harassmentLocation,omitempty"`
	// Small claims and name change
	ClaimDescription *string `json:"claimDescription,omitempty"`
	CurrentName      *string `json:"currentName,omitempty"`
	BirthDate        *string `json:"birthDate,omitempty"`
	BirthPlace       *string `json:"birthPlace,omitempty"`
	NewName          *string `json:"newName,omitempty"`
	ReasonForChange  *string `json:"reasonForChange,omitempty"`
	// Expungement
	CriminalCharge       *string `json:"criminalCharge,omitempty"`
	ConvictionDate       *string `json:"convictionDate,omitempty"`
	ConvictionCourt      *string `json:"convictionCourt,omitempty"`
	ConvictionCaseNumber *string `json:"convictionCaseNumber,omitempty"`
	SentenceCompleted    *string `json:"sentenceCompleted,omitempty"`
	ExpungementBenefit   *string `json:"expungementBenefit,omitempty"`
	// Eviction
	PropertyAddress    *string `json:"propertyAddress,omitempty"`
	TenancyType        *string `json:"tenancyType,omitempty"`
	MonthlyRent        *string `json:"monthlyRent,omitempty"`
	RentDueDate        *string `json:"rentDueDate,omitempty"`
	DefaultDescription *string `json:"defaultDescription,omitempty"`
	NoticeServed       *string `json:"noticeServed,omitempty"`
	NoticeDate         *string `json:"noticeDate,omitempty"`
	TenancyEndDate     *string `json:"tenancyEndDate,omitempty"`
	RentOwed           *string `json:"rentOwed,omitempty"`
	// Guardianship
	WardName                 *string `json:"wardName,omitempty"`
	WardBirthDate            *string `json:"wardBirthDate,omitempty"`
	WardAddress              *string `json:"wardAddress,omitempty"`
	WardRelationship         *string `json:"wardRelationship,omitempty"`
	GuardianshipReason       *string `json:"guardianshipReason,omitempty"`
	PetitionerQualifications *string `json:"petitionerQualifications,omitempty"`
	PriorityPersons          *string `json:"priorityPersons,omitempty"`
	// Probate
	DecedentName      *string `json:"decedentName,omitempty"`
	DeathDate         *string `json:"deathDate,omitempty"`
	DeathPlace        *string `json:"deathPlace,omitempty"`
	DomicileCounty    *string `json:"domicileCounty,omitempty"`
	WillDate          *string `json:"willDate,omitempty"`
	NamedExecutor     *string `json:"namedExecutor,omitempty"`
	EstateValue       *string `json:"estateValue,omitempty"`
	HeirsDevisees     *string `json:"heirsDevisees,omitempty"`
	RequestedExecutor *string `json:"requestedExecutor,omitempty"`
}

// factField binds a fact name to its storage slot.
type factField struct {
	name string
	slot func(f *Facts) **string
}

var factFields = []factField{
	{"caseNumber", func(f *Facts) **string { return &f.CaseNumber }},
	{"court", func(f *Facts) **string { return &f.Court }},
	{"judge", func(f *Facts) **string { return &f.Judge }},
	{"filingDate", func(f *Facts) **string { return &f.FilingDate }},
	{"petitionerName", func(f *Facts) **string { return &f.PetitionerName }},
	{"petitionerAddress", func(f *Facts) **string { return &f.PetitionerAddress }},
	{"petitionerPhone", func(f *Facts) **string { return &f.PetitionerPhone }},
	{"respondentName", func(f *Facts) **string { return &f.RespondentName }},
	{"respondentAddress", func(f *Facts) **string { return &f.RespondentAddress }},
	{"respondentPhone", func(f *Facts) **string { return &f.RespondentPhone }},
	{"marriageDate", func(f *Facts) **string { return &f.MarriageDate }},
	{"separationDate", func(f *Facts) **string { return &f.SeparationDate }},
	{"attorneyName", func(f *Facts) **string { return &f.AttorneyName }},
	{"attorneyAddress", func(f *Facts) **string { return &f.AttorneyAddress }},
	{"attorneyPhone", func(f *Facts) **string { return &f.AttorneyPhone }},
	{"attorneyEmail", func(f *Facts) **string { return &f.AttorneyEmail }},
	{"appelantName", func(f *Facts) **string { return &f.AppellantName }},
	{"judgmentType", func(f *Facts) **string { return &f.JudgmentType }},
	{"judgmentDate", func(f *Facts) **string { return &f.JudgmentDate }},
	{"clientName", func(f *Facts) **string { return &f.ClientName }},
	{"applicantName", func(f *Facts) **string { return &f.ApplicantName }},
	{"applicantAddress", func(f *Facts) **string { return &f.ApplicantAddress }},
	{"applicantPhone", func(f *Facts) **string { return &f.ApplicantPhone }},
	{"barState", func(f *Facts) **string { return &f.BarState }},
	{"admissionDate", func(f *Facts) **string { return &f.AdmissionDate }},
	{"localCounselName", func(f *Facts) **string { return &f.LocalCounselName }},
	{"localCounselFirm", func(f *Facts) **string { return &f.LocalCounselFirm }},
	{"localCounselAddress", func(f *Facts) **string { return &f.LocalCounselAddress }},
	{"localCounselPhone", func(f *Facts) **string { return &f.LocalCounselPhone }},
	{"localCounselEmail", func(f *Facts) **string { return &f.LocalCounselEmail }},
	{"monthlyIncome", func(f *Facts) **string { return &f.MonthlyIncome }},
	{"monthlyExpenses", func(f *Facts) **string { return &f.MonthlyExpenses }},
	{"cashOnHand", func(f *Facts) **string { return &f.CashOnHand }},
	{"propertyDescription", func(f *Facts) **string { return &f.PropertyDescription }},
	{"employmentStatus", func(f *Facts) **string { return &f.EmploymentStatus }},
	{"jurisdictionBasis", func(f *Facts) **string { return &f.JurisdictionBasis }},
	{"venueBasis", func(f *Facts) **string { return &f.VenueBasis }},
	{"plaintiffDescription", func(f *Facts) **string { return &f.PlaintiffDescription }},
	{"defendantDescription", func(f *Facts) **string { return &f.DefendantDescription }},
	{"claimStatement", func(f *Facts) **string { return &f.ClaimStatement }},
	{"damageAmount", func(f *Facts) **string { return &f.DamageAmount }},
	{"defendantName", func(f *Facts) **string { return &f.DefendantName }},
	{"arrestDate", func(f *Facts) **string { return &f.ArrestDate }},
	{"initialAppearanceDate", func(f *Facts) **string { return &f.InitialAppearanceDate }},
	{"reasonForExclusion", func(f *Facts) **string { return &f.ReasonForExclusion }},
	{"justificationForExclusion", func(f *Facts) **string { return &f.JustificationForExclusion }},
	{"startDate", func(f *Facts) **string { return &f.StartDate }},
	{"endDate", func(f *Facts) **string { return &f.EndDate }},
	{"prosecutorName", func(f *Facts) **string { return &f.ProsecutorName }},
	{"prosecutorAddress", func(f *Facts) **string { return &f.ProsecutorAddress }},
	{"prosecutorPhone", func(f *Facts) **string { return &f.ProsecutorPhone }},
	{"defenseAttorneyName", func(f *Facts) **string { return &f.DefenseAttorneyName }},
	{"defenseAttorneyAddress", func(f *Facts) **string { return &f.DefenseAttorneyAddress }},
	{"defenseAttorneyPhone", func(f *Facts) **string { return &f.DefenseAttorneyPhone }},
	{"witnessName", func(f *Facts) **string { return &f.WitnessName }},
	{"witnessAddress", func(f *Facts) **string { return &f.WitnessAddress }},
	{"courtLocation", func(f *Facts) **string { return &f.CourtLocation }},
	{"hearingDate", func(f *Facts) **string { return &f.HearingDate }},
	{"hearingTime", func(f *Facts) **string { return &f.HearingTime }},
	{"documentsRequired", func(f *Facts) **string { return &f.DocumentsRequired }},
	{"relatedCaseName", func(f *Facts) **string { return &f.RelatedCaseName }},
	{"relatedCaseNumber", func(f *Facts) **string { return &f.RelatedCaseNumber }},
	{"relatedCaseJudge", func(f *Facts) **string { return &f.RelatedCaseJudge }},
	{"relationshipDescription", func(f *Facts) **string { return &f.RelationshipDescription }},
	{"reasonForRelation", func(f *Facts) **string { return &f.ReasonForRelation }},
	{"childName", func(f *Facts) **string { return &f.ChildName }},
	{"childBirthDate", func(f *Facts) **string { return &f.ChildBirthDate }},
	{"custodyBasis", func(f *Facts) **string { return &f.CustodyBasis }},
	{"custodyRequest", func(f *Facts) **string { return &f.CustodyRequest }},
	{"relationship", func(f *Facts) **string { return &f.Relationship }},
	{"abuseDescription", func(f *Facts) **string { return &f.AbuseDescription }},
	{"abuseDate", func(f *Facts) **string { return &f.AbuseDate }},
	{"abuseLocation", func(f *Facts) **string { return &f.AbuseLocation }},
	{"harassmentDescription", func(f *Facts) **string { return &f.HarassmentDescription }},
	{"harassmentDate", func(f *Facts) **string { return &f.HarassmentDate }},
	{"harassmentLocation", func(f *Facts) **string { return &f.HarassmentLocation }},
	{"claimDescription", func(f *Facts) **string { return &f.ClaimDescription }},
	{"currentName", func(f *Facts) **string { return &f.CurrentName }},
	{"birthDate", func(f *Facts) **string { return &f.BirthDate }},
	{"birthPlace", func(f *Facts) **string { return &f.BirthPlace }},
	{"newName", func(f *Facts) **string { return &f.NewName }},
	{"reasonForChange", func(f *Facts) **string { return &f.ReasonForChange }},
	{"criminalCharge", func(f *Facts) **string { return &f.CriminalCharge }},
	{"convictionDate", func(f *Facts) **string { return &f.ConvictionDate }},
	{"convictionCourt", func(f *Facts) **string { return &f.ConvictionCourt }},
	{"convictionCaseNumber", func(f *Facts) **string { return &f.ConvictionCaseNumber }},
	{"sentenceCompleted", func(f *Facts) **string { return &f.SentenceCompleted }},
	{"expungementBenefit", func(f *Facts) **string { return &f.ExpungementBenefit }},
	{"propertyAddress", func(f *Facts) **string { return &f.PropertyAddress }},
	{"tenancyType", func(f *Facts) **string { return &f.TenancyType }},
	{"monthlyRent", func(f *Facts) **string { return &f.MonthlyRent }},
	{"rentDueDate", func(f *Facts) **string { return &f.RentDueDate }},
	{"defaultDescription", func(f *Facts) **string { return &f.DefaultDescription }},
	{"noticeServed", func(f *Facts) **string { return &f.NoticeServed }},
	{"noticeDate", func(f *Facts) **string { return &f.NoticeDate }},
	{"tenancyEndDate", func(f *Facts) **string { return &f.TenancyEndDate }},
	{"rentOwed", func(f *Facts) **string { return &f.RentOwed }},
	{"wardName", func(f *Facts) **string { return &f.WardName }},
	{"wardBirthDate", func(f *Facts) **string { return &f.WardBirthDate }},
	{"wardAddress", func(f *Facts) **string { return &f.WardAddress }},
	{"wardRelationship", func(f *Facts) **string { return &f.WardRelationship }},
	{"guardianshipReason", func(f *Facts) **string { return &f.GuardianshipReason }},
	{"petitionerQualifications", func(f *Facts) **string { return &f.PetitionerQualifications }},
	{"priorityPersons", func(f *Facts) **string { return &f.PriorityPersons }},
	{"decedentName", func(f *Facts) **string { return &f.DecedentName }},
	{"deathDate", func(f *Facts) **string { return &f.DeathDate }},
	{"deathPlace", func(f *Facts) **string { return &f.DeathPlace }},
	{"domicileCounty", func(f *Facts) **string { return &f.DomicileCounty }},
	{"willDate", func(f *Facts) **string { return &f.WillDate }},
	{"namedExecutor", func(f *Facts) **string { return &f.NamedExecutor }},
	{"estateValue", func(f *Facts) **string { return &f.EstateValue }},
	{"heirsDevisees", func(f *Facts) **string { return &f.HeirsDevisees }},
	{"requestedExecutor", func(f *Facts) **string { return &f.RequestedExecutor }},
}
var factIndex = func() map[string]factField {
	m := make(map[string]factField, len(factFields))
	for _, f := range factFields {
		m[f.name] = f
	}
	return m
}()

// Read-only keys of a fact record's JSON form; patches never touch them.
var recordKeys = map[string]struct{}{
	"id":          {},
	"documentId":  {},
	"extractedAt": {},
	"updatedAt":   {},
}

// AdditionalInfoKey is the JSON key of the open-ended fact map.
const AdditionalInfoKey = "additionalInfo"

// FactFieldNames returns every named fact in declaration order.
func FactFieldNames() []string {
	names := make([]string, len(factFields))
	for i, f := range factFields {
		names[i] = f.name
	}
	return names
}

// IsFactField reports whether name is a modeled fact.
func IsFactField(name string) bool {
	_, ok := factIndex[name]
	return ok
}

// Get returns the value of a named fact; ok is false when unknown or unset.
func (f *Facts) Get(name string) (string, bool) {
	ff, ok := factIndex[name]
	if !ok {
		return "", false
	}
	p := *ff.slot(f)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set assigns a named fact. It returns false for unknown names.
func (f *Facts) Set(name, value string) bool {
	ff, ok := factIndex[name]
	if !ok {
		return false
	}
	v := value
	*ff.slot(f) = &v
	return true
}

// Clear unsets a named fact. It returns false for unknown names.
func (f *Facts) Clear(name string) bool {
	ff, ok := factIndex[name]
	if !ok {
		return false
	}
	*ff.slot(f) = nil
	return true
}

// Count returns how many named facts are set.
func (f *Facts) Count() int {
	n := 0
	for _, ff := range factFields {
		if *ff.slot(f) != nil {
			n++
		}
	}
	return n
}

// Map returns the set named facts keyed by field name.
func (f *Facts) Map() map[string]string {
	out := make(map[string]string)
	for _, ff := range factFields {
		if p := *ff.slot(f); p != nil {
			out[ff.name] = *p
		}
	}
	return out
}

// FactsFromMap builds Facts from name/value pairs, ignoring unknown names.
func FactsFromMap(m map[string]string) Facts {
	var f Facts
	for k, v := range m {
		f.Set(k, v)
	}
	return f
}

// FactRecord is the structured fact set owned by one document.
type FactRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	Facts
	AdditionalInfo map[string]any `json:"additionalInfo,omitempty"`
	ExtractedAt    time.Time      `json:"extractedAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Values flattens the record into placeholder values. Named facts win over
// additional info entries with the same key; unset facts are omitted.
func (r *FactRecord) Values() map[string]string {
	out := make(map[string]string, len(factFields)+len(r.AdditionalInfo))
	for k, v := range r.AdditionalInfo {
		if s, ok := StringifyFact(v); ok {
			out[k] = s
		}
	}
	for _, ff := range factFields {
		if p := *ff.slot(&r.Facts); p != nil {
			out[ff.name] = *p
		}
	}
	return out
}

// Merge copies values from a loosely-typed map. Named facts are set (or
// cleared when clearOnNull and the value is null), "additionalInfo" objects
// are merged key by key, and any other key lands in AdditionalInfo.
func (r *FactRecord) Merge(m map[string]any, clearOnNull bool) error {
	for k, v := range m {
		if _, ro := recordKeys[k]; ro {
			continue
		}
		if k == AdditionalInfoKey {
			if err := r.mergeAdditional(v); err != nil {
				return err
			}
			continue
		}
		if IsFactField(k) {
			if v == nil {
				if clearOnNull {
					r.Clear(k)
				}
				continue
			}
			s, ok := StringifyFact(v)
			if !ok {
				return fmt.Errorf("field %q: unsupported value %T", k, v)
			}
			r.Set(k, s)
			continue
		}
		r.setAdditional(k, v)
	}
	return nil
}

// ApplyPatch is a reviewer edit: only supplied keys change and an explicit
// null clears a named fact.
func (r *FactRecord) ApplyPatch(patch map[string]any) error {
	return r.Merge(patch, true)
}

func (r *FactRecord) mergeAdditional(v any) error {
	if v == nil {
		return nil
	}
	extra, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%s must be an object, got %T", AdditionalInfoKey, v)
	}
	for k, ev := range extra {
		r.setAdditional(k, ev)
	}
	return nil
}

func (r *FactRecord) setAdditional(k string, v any) {
	if v == nil {
		delete(r.AdditionalInfo, k)
		return
	}
	if r.AdditionalInfo == nil {
		r.AdditionalInfo = make(map[string]any)
	}
	r.AdditionalInfo[k] = v
}

// StringifyFact renders a JSON-decoded value as fact text. Null yields false.
func StringifyFact(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool, float64, float32, int, int64, int32, json.Number:
		return fmt.Sprint(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := StringifyFact(e); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
