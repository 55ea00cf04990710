package domain

// NormalizePhone reduces a raw phone value to dialable digits. National
// 10–11 digit numbers get the "55" DDI prefix; anything shorter than 10
// digits is unusable and returns ok=false.
func NormalizePhone(raw string) (string, bool) {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) < 10 {
		return "", false
	}
	if len(digits) == 10 || len(digits) == 11 {
		return "55" + string(digits), true
	}
	return string(digits), true
}
