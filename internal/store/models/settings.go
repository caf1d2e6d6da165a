package models

// Setting keys in the property_settings table.
const (
	SettingCheckInTime      = "check_in_time"
	SettingCheckOutTime     = "check_out_time"
	SettingSafeCodeOverride = "safe_code_override"
	SettingWelcomeMessage   = "welcome_message"
)

// PropertySettings holds the property-wide values applied across all
// reservations. The safe-code override, when non-empty, replaces every
// reservation's own safe code before it reaches the stay core.
type PropertySettings struct {
	CheckInTime      string `json:"check_in_time"`
	CheckOutTime     string `json:"check_out_time"`
	SafeCodeOverride string `json:"safe_code_override"`
	WelcomeMessage   string `json:"welcome_message"`
}
