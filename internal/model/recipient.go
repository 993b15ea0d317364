// internal/model/recipient.go
package model

// MaxVariables is the number of template variable columns a recipient file may carry.
const MaxVariables = 4

type Recipient struct {
	Numero    string   `json:"numero"`
	Variables []string `json:"variables,omitempty"`
}

// NewRecipient drops empty variables and keeps at most MaxVariables of the rest, in order.
func NewRecipient(numero string, variables ...string) Recipient {
	r := Recipient{Numero: numero}
	for _, v := range variables {
		if v == "" {
			continue
		}
		if len(r.Variables) == MaxVariables {
			break
		}
		r.Variables = append(r.Variables, v)
	}
	return r
}
