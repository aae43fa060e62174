package dto

// ConsentStatusResponse backs the public consent page behind GET
// /consent/:token.
type ConsentStatusResponse struct {
	StudentName      string `json:"student_name"`
	ConsentStatus    bool   `json:"consent_status"`
	AlreadyResponded bool   `json:"already_responded"`
}

// ConsentDecisionResponse confirms an accept or decline.
type ConsentDecisionResponse struct {
	Message string `json:"message"`
}
