package user

import (
	"bufio"
	"compress/gzip"
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/sciencequest/core"
)

//go:embed assets/common-passwords.txt.gz
var assetsFS embed.FS

var (
	allRolesTag  = "allroles"
	allRolesText = "perfil inválido"

	allStatusesTag  = "allstatuses"
	allStatusesText = "situação inválida"

	usernameOrEmailTag  = "username_or_email"
	usernameOrEmailText = "informe o nome de usuário ou o e-mail"

	studentClassTag  = "student_class"
	studentClassText = "obrigatório para alunos"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("a senha deve ter pelo menos %d caracteres", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "a senha não pode conter espaços"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "a senha não pode ter apenas números"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "a senha deve ter pelo menos 1 letra maiúscula, 1 letra minúscula, 1 número e 1 caractere especial"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "a senha é muito parecida com os seus dados pessoais"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "esta senha é muito comum"

	pwdTexts = map[string]string{
		pwdMinLenTag:     pwdMinLenText,
		pwdNoSpaceTag:    pwdNoSpaceText,
		pwdNotAllNumTag:  pwdNotAllNumText,
		pwdComplexityTag: pwdComplexityText,
		pwdAttrSimTag:    pwdAttrSimText,
		pwdNoCommonTag:   pwdNoCommonText,
	}

	commonPasswords     = make([]string, 0, 256)
	commonPasswordsOnce sync.Once
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	_ = validate.RegisterValidation(allStatusesTag, allStatusesValidation)
	core.RegisterCustomTranslation(validate, translator, allStatusesTag, allStatusesText)

	validate.RegisterStructValidation(
		userStructValidation, NewUser{}, UpdateUser{}, StudentRegistration{}, TeacherRegistration{},
	)
	core.RegisterCustomTranslation(validate, translator, usernameOrEmailTag, usernameOrEmailText)
	core.RegisterCustomTranslation(validate, translator, studentClassTag, studentClassText)
	for tag, text := range pwdTexts {
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}
}

// LoadCommonPasswords reads the embedded list of common passwords rejected by the password policy.
func LoadCommonPasswords(logger core.Logger) {
	commonPasswordsOnce.Do(func() {
		if err := loadCommonPasswords(); err != nil && logger != nil {
			logger.Error(fmt.Sprintf("loading common passwords: %v", err), err)
		}
	})
}

func loadCommonPasswords() error {
	file, err := assetsFS.Open("assets/common-passwords.txt.gz")
	if err != nil {
		return err
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			commonPasswords = append(commonPasswords, strings.ToLower(pwd))
		}
	}
	sort.Strings(commonPasswords)
	return scanner.Err()
}

// Custom Validators

func allRolesValidation(fl validator.FieldLevel) bool {
	return RolePriority(fl.Field().String()) > 0
}

func allStatusesValidation(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	for _, s := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// userStructValidation does struct level validation on user inputs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if usr.Username == "" && usr.Email == "" {
			sl.ReportError(usr.Username, "username", "Username", usernameOrEmailTag, "")
			sl.ReportError(usr.Email, "email", "Email", usernameOrEmailTag, "")
		}
		if usr.Role == RoleStudent {
			reportMissingClass(sl, usr.SchoolID, usr.Grade, usr.Class, usr.Shift)
		}
		reportPassword(sl, usr.Password, usr.Name, usr.Username, usr.Email)
	case UpdateUser:
		if usr.Username == "" && usr.Email == "" {
			sl.ReportError(usr.Username, "username", "Username", usernameOrEmailTag, "")
			sl.ReportError(usr.Email, "email", "Email", usernameOrEmailTag, "")
		}
		if usr.Role == RoleStudent {
			reportMissingClass(sl, usr.SchoolID, usr.Grade, usr.Class, usr.Shift)
		}
		if usr.Password != "" {
			reportPassword(sl, usr.Password, usr.Name, usr.Username, usr.Email)
		}
	case StudentRegistration:
		reportPassword(sl, usr.Password, usr.Name, usr.Username, usr.Email)
	case TeacherRegistration:
		reportPassword(sl, usr.Password, usr.Name, usr.Username, usr.Email)
	}
}

func reportMissingClass(sl validator.StructLevel, schoolID string, grade int, class, shift string) {
	if schoolID == "" {
		sl.ReportError(schoolID, "school_id", "SchoolID", studentClassTag, "")
	}
	if grade == 0 {
		sl.ReportError(grade, "grade", "Grade", studentClassTag, "")
	}
	if class == "" {
		sl.ReportError(class, "class", "Class", studentClassTag, "")
	}
	if shift == "" {
		sl.ReportError(shift, "shift", "Shift", studentClassTag, "")
	}
}

func reportPassword(sl validator.StructLevel, pwd string, attrs ...string) {
	if tag := checkPassword(pwd, attrs...); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// ValidatePassword applies the password policy outside of struct validation.
func ValidatePassword(pwd string, attrs ...string) error {
	if tag := checkPassword(pwd, attrs...); tag != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: pwdTexts[tag]})
	}
	return nil
}

// checkPassword applies the password policy to provided password and returns the failing rule's tag:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func checkPassword(pwd string, attrs ...string) string {
	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	chars := []rune(pwd)
	if len(chars) < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range chars {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == len(chars) {
		return pwdNotAllNumTag
	}

	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		return pwdComplexityTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}

	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) {
		if commonPasswords[idx] == lpwd {
			return pwdNoCommonTag
		}
	}
	return ""
}
