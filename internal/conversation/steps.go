// internal/conversation/steps.go
package conversation

// Step identifies one position in the intake sequence. The step name
// doubles as the session field key for the answer collected at that step.
type Step string

const (
	StepFatherNationalCode Step = "father_national_code"
	StepFatherBirthDate    Step = "father_birth_date"
	StepFatherProvince     Step = "father_province"
	StepFatherCity         Step = "father_city"
	StepFatherPhone        Step = "father_phone"
	StepParentsStatus      Step = "parents_status"
	StepMotherNationalCode Step = "mother_national_code"
	StepMotherBirthDate    Step = "mother_birth_date"
	StepMotherPhone        Step = "mother_phone"
	StepChildNationalCode  Step = "child_national_code"
	StepChildBirthDate     Step = "child_birth_date"
	StepChildProvince      Step = "child_province"
	StepChildCity          Step = "child_city"
	StepChildOrdinal       Step = "child_ordinal"
	StepBankPreference     Step = "bank_preference"
	StepConfirmation       Step = "confirmation"
	StepDone               Step = "done"
)

// InitialStep is where every new session starts.
const InitialStep = StepFatherNationalCode

// Next computes the step that follows current. The only branch in the
// sequence is at parents_status: the mother steps are visited only when
// the parents are separated.
func Next(current Step, separated bool) Step {
	switch current {
	case StepFatherNationalCode:
		return StepFatherBirthDate
	case StepFatherBirthDate:
		return StepFatherProvince
	case StepFatherProvince:
		return StepFatherCity
	case StepFatherCity:
		return StepFatherPhone
	case StepFatherPhone:
		return StepParentsStatus
	case StepParentsStatus:
		if separated {
			return StepMotherNationalCode
		}
		return StepChildNationalCode
	case StepMotherNationalCode:
		return StepMotherBirthDate
	case StepMotherBirthDate:
		return StepMotherPhone
	case StepMotherPhone:
		return StepChildNationalCode
	case StepChildNationalCode:
		return StepChildBirthDate
	case StepChildBirthDate:
		return StepChildProvince
	case StepChildProvince:
		return StepChildCity
	case StepChildCity:
		return StepChildOrdinal
	case StepChildOrdinal:
		return StepBankPreference
	case StepBankPreference:
		return StepConfirmation
	default:
		return StepDone
	}
}

// prompts holds the user-facing question for each step.
var prompts = map[Step]string{
	StepFatherNationalCode: "کد ملی پدر را وارد کنید (۱۰ رقم):",
	StepFatherBirthDate:    "تاریخ تولد پدر را وارد کنید (مثال: ۱۳۷۰/۰۵/۲۱):",
	StepFatherProvince:     "استان محل سکونت پدر را وارد کنید:",
	StepFatherCity:         "شهر محل سکونت پدر را وارد کنید:",
	StepFatherPhone:        "شماره موبایل پدر را وارد کنید (۱۱ رقم، شروع با ۰۹):",
	StepParentsStatus:      "آیا پدر و مادر از هم جدا شده‌اند؟ (بله/خیر)",
	StepMotherNationalCode: "کد ملی مادر را وارد کنید (۱۰ رقم):",
	StepMotherBirthDate:    "تاریخ تولد مادر را وارد کنید:",
	StepMotherPhone:        "شماره موبایل مادر را وارد کنید (۱۱ رقم، شروع با ۰۹):",
	StepChildNationalCode:  "کد ملی فرزند را وارد کنید (۱۰ رقم):",
	StepChildBirthDate:     "تاریخ تولد فرزند را وارد کنید:",
	StepChildProvince:      "استان محل تولد فرزند را وارد کنید:",
	StepChildCity:          "شهر محل تولد فرزند را وارد کنید:",
	StepChildOrdinal:       "فرزند چندم خانواده است؟ (عدد ۱ تا ۱۰)",
	StepBankPreference:     "بانک مورد نظر برای دریافت وام را وارد کنید:",
	StepConfirmation:       "آیا اطلاعات بالا را تایید می‌کنید؟ (بله/خیر)",
}

// quickReplies holds suggested answers shown as reply buttons where the
// step has a closed answer set.
var quickReplies = map[Step][]string{
	StepParentsStatus:  {"بله", "خیر"},
	StepConfirmation:   {"بله", "خیر"},
	StepBankPreference: {"ملی", "ملت", "صادرات", "تجارت", "رفاه"},
}

// Prompt returns the question text for a step.
func Prompt(step Step) string {
	return prompts[step]
}

// QuickReplies returns the suggested answers for a step, if any.
func QuickReplies(step Step) []string {
	return quickReplies[step]
}
