package graph

import (
	"fmt"

	"github.com/brunobiangulo/fingraph/extract"
)

// asset kinds used in positional identifiers.
const (
	kindDependant  = "dep"
	kindProperty   = "prop"
	kindPension    = "pen"
	kindInvestment = "inv"
)

// PrimaryClientName is the name of the first client in rec, or a
// placeholder derived from the document name when that client has none.
func PrimaryClientName(rec *extract.Record, documentName string) string {
	if rec.HasClients() {
		if name := rec.Clients[0].Name(); name != "" {
			return name
		}
	}
	return "Unknown_" + documentName
}

// positionalID builds {owner}_{kind}_{index}. The index is the entry's
// position in the document's list, so identities depend on extraction order.
func positionalID(owner, kind string, index int) string {
	return fmt.Sprintf("%s_%s_%d", owner, kind, index)
}

// Plan returns the ordered write sequence for one document's record:
// adviser, clients with their ADVISES edges, dependants, properties,
// pensions, investments, then the retirement goal. A record without
// clients plans no writes at all.
//
// Dependants and the retirement goal always hang off the primary client.
// Assets go to the entry's owner when it names one, otherwise to the
// primary client.
func Plan(rec *extract.Record, documentName string) []Op {
	if !rec.HasClients() {
		return nil
	}

	var ops []Op
	primary := PrimaryClientName(rec, documentName)

	if rec.Adviser != "" {
		ops = append(ops, NodeOp{
			Label: LabelAdviser,
			Key:   rec.Adviser,
			Props: map[string]any{"name": rec.Adviser},
		})
	}

	for _, c := range rec.Clients {
		name := c.Name()
		if name == "" {
			name = primary
		}
		props := sanitizeProps(c)
		props["name"] = name
		props["source_document"] = documentName
		ops = append(ops, NodeOp{Label: LabelClient, Key: name, Props: props})

		if rec.Adviser != "" {
			ops = append(ops, EdgeOp{
				FromLabel: LabelAdviser, FromKey: rec.Adviser,
				Type:    RelAdvises,
				ToLabel: LabelClient, ToKey: name,
			})
		}
	}

	for i, d := range rec.Dependants {
		id := positionalID(primary, kindDependant, i)
		ops = append(ops,
			NodeOp{Label: LabelDependant, Key: id, Props: keyedProps(d, "id", id)},
			EdgeOp{
				FromLabel: LabelClient, FromKey: primary,
				Type:    RelParentOf,
				ToLabel: LabelDependant, ToKey: id,
			},
		)
	}

	ops = appendAssets(ops, rec.Assets.Properties, primary, LabelProperty, kindProperty, RelOwns)
	ops = appendAssets(ops, rec.Assets.Pensions, primary, LabelPension, kindPension, RelHasAccount)
	ops = appendAssets(ops, rec.Assets.Investments, primary, LabelInvestment, kindInvestment, RelHasAccount)

	if len(rec.Goals.Retirement) > 0 {
		id := primary + "_ret_goal"
		props := map[string]any{"type": "Retirement"}
		for k, v := range sanitizeProps(rec.Goals.Retirement) {
			props[k] = v
		}
		props["id"] = id
		ops = append(ops,
			NodeOp{Label: LabelGoal, Key: id, Props: props},
			EdgeOp{
				FromLabel: LabelClient, FromKey: primary,
				Type:    RelHasGoal,
				ToLabel: LabelGoal, ToKey: id,
			},
		)
	}

	return ops
}

// appendAssets plans one asset list. The owner client is merged bare first
// so the relationship has both endpoints even when the owner was not among
// the extracted clients.
func appendAssets(ops []Op, entries []extract.Entity, primary, label, kind, rel string) []Op {
	for i, e := range entries {
		owner := e.Owner()
		if owner == "" {
			owner = primary
		}
		id := positionalID(owner, kind, i)
		ops = append(ops,
			NodeOp{Label: LabelClient, Key: owner},
			NodeOp{Label: label, Key: id, Props: keyedProps(e, "id", id)},
			EdgeOp{
				FromLabel: LabelClient, FromKey: owner,
				Type:    rel,
				ToLabel: label, ToKey: id,
			},
		)
	}
	return ops
}

// keyedProps sanitises e and pins the key property so an extracted "id"
// attribute cannot move the node's identity.
func keyedProps(e extract.Entity, keyProp, key string) map[string]any {
	props := sanitizeProps(e)
	props[keyProp] = key
	return props
}
