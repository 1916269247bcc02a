package coze

import "strings"

// Canonical user type codes understood by the template catalogue.
const (
	UserTypeChild      = "child"
	UserTypeTeen       = "teen"
	UserTypeYouth      = "youth"
	UserTypeAdult      = "adult"
	UserTypeMiddleAged = "middle_aged"
	UserTypeSenior     = "senior"
)

// userTypeSynonyms maps legacy codes, display names and Chinese labels onto
// canonical codes. Keys are lower-case.
var userTypeSynonyms = map[string]string{
	// legacy numeric codes
	"1": UserTypeChild,
	"2": UserTypeTeen,
	"3": UserTypeYouth,
	"4": UserTypeAdult,
	"5": UserTypeMiddleAged,
	"6": UserTypeSenior,
	// legacy letter codes
	"c":  UserTypeChild,
	"t":  UserTypeTeen,
	"y":  UserTypeYouth,
	"a":  UserTypeAdult,
	"m":  UserTypeMiddleAged,
	"s":  UserTypeSenior,
	"u1": UserTypeChild,
	"u2": UserTypeTeen,
	"u3": UserTypeYouth,
	"u4": UserTypeAdult,
	"u5": UserTypeMiddleAged,
	"u6": UserTypeSenior,
	// canonical and english display names
	UserTypeChild:      UserTypeChild,
	"kid":              UserTypeChild,
	"kids":             UserTypeChild,
	"children":         UserTypeChild,
	"baby":             UserTypeChild,
	UserTypeTeen:       UserTypeTeen,
	"teenager":         UserTypeTeen,
	"adolescent":       UserTypeTeen,
	UserTypeYouth:      UserTypeYouth,
	"young":            UserTypeYouth,
	"young adult":      UserTypeYouth,
	"young_adult":      UserTypeYouth,
	UserTypeAdult:      UserTypeAdult,
	UserTypeMiddleAged: UserTypeMiddleAged,
	"middle-aged":      UserTypeMiddleAged,
	"middle aged":      UserTypeMiddleAged,
	"middle":           UserTypeMiddleAged,
	UserTypeSenior:     UserTypeSenior,
	"elder":            UserTypeSenior,
	"elderly":          UserTypeSenior,
	"old":              UserTypeSenior,
	// chinese labels
	"儿童":  UserTypeChild,
	"小孩":  UserTypeChild,
	"孩子":  UserTypeChild,
	"幼儿":  UserTypeChild,
	"少年":  UserTypeTeen,
	"青少年": UserTypeTeen,
	"学生":  UserTypeTeen,
	"青年":  UserTypeYouth,
	"年轻人": UserTypeYouth,
	"成年":  UserTypeAdult,
	"成人":  UserTypeAdult,
	"成年人": UserTypeAdult,
	"中年":  UserTypeMiddleAged,
	"中年人": UserTypeMiddleAged,
	"老年":  UserTypeSenior,
	"老人":  UserTypeSenior,
	"老年人": UserTypeSenior,
}

// NormalizeUserType maps a raw age or user type label onto a canonical code.
// Unrecognized labels are returned trimmed but otherwise unchanged so callers
// can still log them.
func NormalizeUserType(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if code, ok := userTypeSynonyms[strings.ToLower(trimmed)]; ok {
		return code
	}
	return trimmed
}
