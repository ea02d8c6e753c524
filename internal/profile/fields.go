package profile

import (
	"strconv"
	"strings"
)

// Field identifies one extractable profile attribute. The set is closed:
// lookups go through the registry and unknown names are rejected there,
// never via reflection or a trailing attribute-error catch.
type Field string

const (
	FieldLocation              Field = "location"
	FieldSchoolType            Field = "school_type"
	FieldDiplomaScore          Field = "diploma_score"
	FieldCurrentStatus         Field = "current_status"
	FieldLearningStyle         Field = "learning_style"
	FieldPrimaryGoal           Field = "primary_goal"
	FieldPreferredCourseLength Field = "preferred_course_length"
	FieldInstitutionPreference Field = "institution_preference"
	FieldBudgetConstraint      Field = "budget_constraint"
	FieldTimeConstraint        Field = "time_constraint"
	FieldRelocationRadius      Field = "relocation_radius"
	FieldWillingToRelocate     Field = "willing_to_relocate"
	FieldRegularPath           Field = "regular_path"
	FieldHasJob                Field = "has_job"
	FieldFurtherStudies        Field = "further_studies"
	FieldFavoriteSubjects      Field = "favorite_subjects"
	FieldDislikedSubjects      Field = "disliked_subjects"
	FieldSoftSkills            Field = "soft_skills"
	FieldHobbies               Field = "hobbies"
	FieldRelevantExperiences   Field = "relevant_experiences"
	FieldHealthConstraints     Field = "health_constraints"
)

// priorityOrder lists the fields the agent asks about, tier 1 first.
// Only unset fields surface in MissingPriority, in this order.
var priorityOrder = []Field{
	// Tier 1: critical context
	FieldLocation,
	FieldSchoolType,
	FieldFavoriteSubjects,
	// Tier 2: goals
	FieldPrimaryGoal,
	FieldInstitutionPreference,
	FieldWillingToRelocate,
	// Tier 3: refinement
	FieldHobbies,
	FieldLearningStyle,
}

// fieldSpec is one row of the dispatch table: how to read, test, and
// write a field without dynamic attribute access.
type fieldSpec struct {
	collection bool
	isSet      func(*Profile) bool
	set        func(*Profile, string) bool
	list       func(*Profile) *[]string // collections only
}

func scalarSpec(get func(*Profile) *string) fieldSpec {
	return fieldSpec{
		isSet: func(p *Profile) bool { return *get(p) != "" },
		set: func(p *Profile, v string) bool {
			if v == "" {
				return false
			}
			*get(p) = v
			return true
		},
	}
}

func tristateSpec(get func(*Profile) *Tristate) fieldSpec {
	return fieldSpec{
		isSet: func(p *Profile) bool { return *get(p) != Unknown },
		set: func(p *Profile, v string) bool {
			t := parseTristate(v)
			if t == Unknown {
				return false
			}
			*get(p) = t
			return true
		},
	}
}

func collectionSpec(get func(*Profile) *[]string) fieldSpec {
	return fieldSpec{
		collection: true,
		isSet:      func(p *Profile) bool { return len(*get(p)) > 0 },
		list:       get,
		set: func(p *Profile, v string) bool {
			return addUnique(get(p), v)
		},
	}
}

// addUnique appends v unless an entry already matches case-insensitively.
func addUnique(list *[]string, v string) bool {
	if v == "" {
		return false
	}
	for _, existing := range *list {
		if strings.EqualFold(existing, v) {
			return false
		}
	}
	*list = append(*list, v)
	return true
}

func parseTristate(v string) Tristate {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "si", "sì", "yes":
		return Yes
	case "false", "no":
		return No
	}
	return Unknown
}

var registry = map[Field]fieldSpec{
	FieldLocation:              scalarSpec(func(p *Profile) *string { return &p.Location }),
	FieldSchoolType:            scalarSpec(func(p *Profile) *string { return &p.SchoolType }),
	FieldCurrentStatus:         scalarSpec(func(p *Profile) *string { return &p.CurrentStatus }),
	FieldLearningStyle:         scalarSpec(func(p *Profile) *string { return &p.LearningStyle }),
	FieldPrimaryGoal:           scalarSpec(func(p *Profile) *string { return &p.PrimaryGoal }),
	FieldPreferredCourseLength: scalarSpec(func(p *Profile) *string { return &p.PreferredCourseLength }),
	FieldInstitutionPreference: scalarSpec(func(p *Profile) *string { return &p.InstitutionPreference }),
	FieldBudgetConstraint:      scalarSpec(func(p *Profile) *string { return &p.BudgetConstraint }),
	FieldTimeConstraint:        scalarSpec(func(p *Profile) *string { return &p.TimeConstraint }),
	FieldRelocationRadius:      scalarSpec(func(p *Profile) *string { return &p.RelocationRadius }),

	FieldWillingToRelocate: tristateSpec(func(p *Profile) *Tristate { return &p.WillingToRelocate }),
	FieldRegularPath:       tristateSpec(func(p *Profile) *Tristate { return &p.RegularPath }),
	FieldHasJob:            tristateSpec(func(p *Profile) *Tristate { return &p.HasJob }),
	FieldFurtherStudies:    tristateSpec(func(p *Profile) *Tristate { return &p.FurtherStudies }),

	FieldDiplomaScore: {
		isSet: func(p *Profile) bool { return p.DiplomaScore != nil },
		set: func(p *Profile, v string) bool {
			score, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return false
			}
			p.DiplomaScore = &score
			return true
		},
	},

	FieldFavoriteSubjects:    collectionSpec(func(p *Profile) *[]string { return &p.FavoriteSubjects }),
	FieldDislikedSubjects:    collectionSpec(func(p *Profile) *[]string { return &p.DislikedSubjects }),
	FieldSoftSkills:          collectionSpec(func(p *Profile) *[]string { return &p.SoftSkills }),
	FieldHobbies:             collectionSpec(func(p *Profile) *[]string { return &p.Hobbies }),
	FieldRelevantExperiences: collectionSpec(func(p *Profile) *[]string { return &p.RelevantExperiences }),
	FieldHealthConstraints:   collectionSpec(func(p *Profile) *[]string { return &p.HealthConstraints }),
}

// synonyms maps localized or shorthand labels the model tends to emit to
// canonical fields. Matching is case-insensitive.
var synonyms = map[string]Field{
	"località":  FieldLocation,
	"localita":  FieldLocation,
	"città":     FieldLocation,
	"scuola":    FieldSchoolType,
	"materie":   FieldFavoriteSubjects,
	"interessi": FieldHobbies,
	"hobby":     FieldHobbies,
	"obiettivo": FieldPrimaryGoal,
}

// NormalizeField resolves a raw extracted field name to a canonical Field.
// Unknown names are rejected.
func NormalizeField(raw string) (Field, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if f, ok := synonyms[name]; ok {
		return f, true
	}
	if _, ok := registry[Field(name)]; ok {
		return Field(name), true
	}
	return "", false
}

// IsCollection reports whether f stores an ordered set of values.
func IsCollection(f Field) bool {
	spec, ok := registry[f]
	return ok && spec.collection
}
