package model

import "time"

// Session is one operator's checkpoint row. It is created on the operator's
// first run and mutated continuously while a download progresses; it is never
// deleted.
type Session struct {
	ChatID           string    `json:"chat_id"`
	CaptchaValid     bool      `json:"captcha_valid"`
	CaptchaText      string    `json:"captcha_text"`
	CurrentPartner   string    `json:"current_partner"`
	ResumeFlag       bool      `json:"resume_flag"`
	CaptchaMessageID string    `json:"captcha_message_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}
