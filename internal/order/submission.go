package order

import "storefront/internal/forms"

// ProductLine est une ligne soumise : seul l'id et la quantité sont lus,
// tout prix envoyé par le client est ignoré.
type ProductLine struct {
	DocumentID string `json:"documentId" validate:"required"`
	Quantity   *int   `json:"quantity" validate:"required"`
}

type Submission struct {
	Status   string        `json:"status" validate:"required,oneof=logged-in logged-out"`
	Email    string        `json:"email,omitempty" validate:"omitempty,email"`
	Products []ProductLine `json:"products" validate:"required,min=1,dive"`
}

// Reply est la réponse d'échec : la saisie d'origine et les erreurs par champ.
type Reply struct {
	Status       string       `json:"status"`
	InitialValue interface{}  `json:"initialValue"`
	Error        forms.Errors `json:"error"`
}

func Rejected(initial interface{}, errs forms.Errors) Reply {
	return Reply{Status: "error", InitialValue: initial, Error: errs}
}

// validate retourne les erreurs de structure de la soumission.
func (s Submission) validate() (forms.Errors, error) {
	errs, err := forms.Validate(s)
	if err != nil {
		return nil, err
	}
	if errs == nil {
		errs = forms.Errors{}
	}
	if s.Status == "logged-out" && s.Email == "" {
		if _, dup := errs["email"]; !dup {
			errs.Add("email", "Required")
		}
	}
	if len(s.Products) == 0 {
		errs["products"] = []string{"Your cart is empty"}
	}
	return errs, nil
}
