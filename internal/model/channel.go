// internal/model/channel.go
package model

import "strings"

// Channel is a configured WhatsApp sending mailbox.
type Channel struct {
	NameID     string `db:"nameid" json:"nameid"`
	CustomName string `db:"custom_name" json:"custom_name"`
	Canal      string `db:"canal" json:"canal"`
	Status     string `db:"status" json:"status"`
	Key        string `db:"key" json:"-"`
	MetaID     string `db:"meta_id" json:"meta_id,omitempty"`
}

// Credentials parses Key, stored as "token,phone_id,waba_id".
// The phone id falls back to MetaID when the key does not carry one.
func (c *Channel) Credentials() Credentials {
	parts := strings.Split(c.Key, ",")
	at := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}

	creds := Credentials{Token: at(0), PhoneID: at(1), WabaID: at(2)}
	if creds.PhoneID == "" {
		creds.PhoneID = c.MetaID
	}
	return creds
}
