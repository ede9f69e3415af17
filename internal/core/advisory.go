package core

import (
	"fmt"

	"recordcore/pkg/domain"
)

// AdvisoryCode classifies a non-fatal warning.
type AdvisoryCode string

const (
	AdvisoryStock          AdvisoryCode = "stock_threshold"
	AdvisoryMissingProduct AdvisoryCode = "missing_product"
	AdvisoryRule           AdvisoryCode = "rule"
)

// Advisory is a warning returned alongside a successful operation.
type Advisory struct {
	Code     AdvisoryCode
	Message  string
	Entity   domain.EntityType
	EntityID string
}

func (a Advisory) String() string {
	return fmt.Sprintf("%s: %s", a.Code, a.Message)
}

// advisoriesFrom converts warn-level rule violations into advisories.
func advisoriesFrom(res domain.Result) []Advisory {
	warnings := res.Warnings()
	if len(warnings) == 0 {
		return nil
	}
	out := make([]Advisory, 0, len(warnings))
	for _, w := range warnings {
		code := AdvisoryRule
		if w.Rule == stockThresholdRuleName {
			code = AdvisoryStock
		}
		out = append(out, Advisory{Code: code, Message: w.Message, Entity: w.Entity, EntityID: w.EntityID})
	}
	return out
}

func missingProductAdvisory(name string) Advisory {
	return Advisory{
		Code:    AdvisoryMissingProduct,
		Message: fmt.Sprintf("product %s not found in stock; no movement recorded", name),
		Entity:  domain.EntityProduct,
	}
}
