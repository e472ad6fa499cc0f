package bmh

import "fmt"

// Grade is the qualitative level the module assigns to one metric.
type Grade int

const (
	GradeUnknown Grade = iota
	GradeThin
	GradeStandard
	GradeAlert
	GradeOverweight
	GradeObese
	GradeInsufficient
	GradeExcellent
	GradeLow
	GradeQualified
	GradeDanger
	GradeNormal
	GradeHigh
)

var gradeNames = map[Grade]string{
	GradeUnknown:      "unknown",
	GradeThin:         "thin",
	GradeStandard:     "standard",
	GradeAlert:        "alert",
	GradeOverweight:   "overweight",
	GradeObese:        "obese",
	GradeInsufficient: "insufficient",
	GradeExcellent:    "excellent",
	GradeLow:          "low",
	GradeQualified:    "qualified",
	GradeDanger:       "danger",
	GradeNormal:       "normal",
	GradeHigh:         "high",
}

func (g Grade) String() string {
	if name, ok := gradeNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// Per-metric code tables, indexed by the byte the module sends.
var (
	fatGrades      = []Grade{GradeThin, GradeStandard, GradeAlert, GradeOverweight, GradeObese}
	rateGrades     = []Grade{GradeInsufficient, GradeStandard, GradeExcellent}
	bmrGrades      = []Grade{GradeLow, GradeQualified}
	visceralGrades = []Grade{GradeStandard, GradeAlert, GradeDanger}
	bmiGrades      = []Grade{GradeThin, GradeNormal, GradeOverweight, GradeObese}
	subcutGrades   = []Grade{GradeInsufficient, GradeStandard, GradeHigh}
)

func grade(table []Grade, code byte) Grade {
	if int(code) < len(table) {
		return table[code]
	}
	return GradeUnknown
}

// LevelReport holds one grade per metric.
type LevelReport struct {
	Fat             Grade `json:"fat"`
	Water           Grade `json:"water"`
	Muscle          Grade `json:"muscle"`
	Bone            Grade `json:"bone"`
	BMR             Grade `json:"bmr"`
	Visceral        Grade `json:"visceral"`
	BMI             Grade `json:"bmi"`
	Protein         Grade `json:"protein"`
	SubcutaneousFat Grade `json:"subcutaneous_fat"`
}

const levelsSize = 9

// DecodeLevels interprets a level reply. Each byte is mapped on its own; an
// unknown code only turns that metric into GradeUnknown.
func DecodeLevels(pdu *ProtocolDataUnit) (*LevelReport, error) {
	if pdu.Status != 0 {
		return nil, &DeviceError{Command: CommandLevels, Code: pdu.Status}
	}
	b := pdu.Data
	if len(b) < levelsSize {
		return nil, fmt.Errorf("%w: level payload has %d bytes", ErrStructuralMismatch, len(b))
	}
	return &LevelReport{
		Fat:             grade(fatGrades, b[0]),
		Water:           grade(rateGrades, b[1]),
		Muscle:          grade(rateGrades, b[2]),
		Bone:            grade(rateGrades, b[3]),
		BMR:             grade(bmrGrades, b[4]),
		Visceral:        grade(visceralGrades, b[5]),
		BMI:             grade(bmiGrades, b[6]),
		Protein:         grade(rateGrades, b[7]),
		SubcutaneousFat: grade(subcutGrades, b[8]),
	}, nil
}
