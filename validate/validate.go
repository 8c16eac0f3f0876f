// Package validate implements the validator (component V): structural
// and type checking of instances and full branches against a schema.
//
// The validator looks up properties and relationships by id or name,
// whichever form the instance used, type-checks literal property values
// against their declared DataType, and walks conditional rule sets to
// make sure every referenced relationship actually exists on the class.
// Explicit id selections are checked against the instances they
// reference and against the relationship's quantifier; filter and all
// selections are deliberately not executed here (they depend on a full
// pool resolution pass) and surface as RelationshipNotValidated
// warnings instead.
package validate

import (
	"fmt"

	"github.com/nickyhof/CommitDB/model"
)

func strPtr(s string) *string { return &s }

// ValidateInstance checks a single instance against schema, returning a
// ValidationResult (errors/warnings as data, never raised).
func ValidateInstance(inst *model.Instance, schema *model.Schema, allInstances []model.Instance) model.ValidationResult {
	result := model.NewValidationResult()
	result.InstanceCount = 1
	result.ValidatedInstances = []string{inst.Id}

	class := schema.ClassByID(inst.ClassId)
	if class == nil {
		result.Valid = false
		result.Errors = append(result.Errors, model.ValidationError{
			InstanceId: inst.Id,
			ErrorType:  model.ErrClassNotFound,
			Message:    fmt.Sprintf("no class definition found for class id %q", inst.ClassId),
			Expected:   strPtr(inst.ClassId),
		})
		return result
	}

	validateProperties(inst, class, &result)
	validateRelationships(inst, class, schema, allInstances, &result)
	return result
}

// ValidateBranch validates every instance against schema.
func ValidateBranch(schema *model.Schema, instances []model.Instance) model.ValidationResult {
	result := model.NewValidationResult()
	result.InstanceCount = len(instances)
	for i := range instances {
		instResult := ValidateInstance(&instances[i], schema, instances)
		result.ValidatedInstances = append(result.ValidatedInstances, instances[i].Id)
		result.Errors = append(result.Errors, instResult.Errors...)
		result.Warnings = append(result.Warnings, instResult.Warnings...)
		if !instResult.Valid {
			result.Valid = false
		}
	}
	return result
}

func validateProperties(inst *model.Instance, class *model.ClassDef, result *model.ValidationResult) {
	for key := range inst.Properties {
		if class.PropertyByIdOrName(key) == nil {
			result.Valid = false
			result.Errors = append(result.Errors, model.ValidationError{
				InstanceId:   inst.Id,
				ErrorType:    model.ErrUndefinedProperty,
				Message:      fmt.Sprintf("property %q is not defined in class %q (checked both id and name)", key, class.Name),
				PropertyName: strPtr(key),
				Actual:       strPtr(key),
			})
		}
	}

	for i := range class.Properties {
		propDef := &class.Properties[i]
		if !propDef.Required {
			continue
		}
		_, byId := inst.Properties[propDef.Id]
		_, byName := inst.Properties[propDef.Name]
		if !byId && !byName {
			result.Valid = false
			result.Errors = append(result.Errors, model.ValidationError{
				InstanceId:   inst.Id,
				ErrorType:    model.ErrMissingRequiredProperty,
				Message:      fmt.Sprintf("required property %q (id: %s) is missing", propDef.Name, propDef.Id),
				PropertyName: strPtr(propDef.Id),
				Expected:     strPtr(string(propDef.DataType)),
			})
		}
	}

	for key, pv := range inst.Properties {
		propDef := class.PropertyByIdOrName(key)
		if propDef == nil {
			continue
		}
		switch pv.Kind {
		case model.PropertyLiteral:
			if pv.Literal == nil {
				continue
			}
			if pv.Literal.DataType != propDef.DataType {
				result.Valid = false
				result.Errors = append(result.Errors, model.ValidationError{
					InstanceId:   inst.Id,
					ErrorType:    model.ErrTypeMismatch,
					Message:      fmt.Sprintf("type mismatch for property %q (id: %s): expected %s, found %s", propDef.Name, propDef.Id, propDef.DataType, pv.Literal.DataType),
					PropertyName: strPtr(key),
					Expected:     strPtr(string(propDef.DataType)),
					Actual:       strPtr(string(pv.Literal.DataType)),
				})
			}
			if msg, ok := checkValueTypeConsistency(pv.Literal.Value, pv.Literal.DataType); !ok {
				result.Valid = false
				result.Errors = append(result.Errors, model.ValidationError{
					InstanceId:   inst.Id,
					ErrorType:    model.ErrValueTypeInconsistency,
					Message:      fmt.Sprintf("value type inconsistency for property %q (id: %s): %s", propDef.Name, propDef.Id, msg),
					PropertyName: strPtr(key),
					Expected:     strPtr(string(pv.Literal.DataType)),
				})
			}
		case model.PropertyConditional:
			if pv.Conditional == nil {
				continue
			}
			validateConditionalRelationships(inst, class, key, *pv.Conditional, result)
		}
	}
}

func checkValueTypeConsistency(value any, declared model.DataType) (string, bool) {
	switch declared {
	case model.DataString:
		_, ok := value.(string)
		return typeMismatchMsg(value, declared), ok
	case model.DataNumber:
		_, ok := value.(float64)
		return typeMismatchMsg(value, declared), ok
	case model.DataBoolean:
		_, ok := value.(bool)
		return typeMismatchMsg(value, declared), ok
	case model.DataObject:
		_, ok := value.(map[string]any)
		return typeMismatchMsg(value, declared), ok
	case model.DataArray:
		_, ok := value.([]any)
		return typeMismatchMsg(value, declared), ok
	case model.DataStringList:
		list, ok := value.([]any)
		if !ok {
			return typeMismatchMsg(value, declared), false
		}
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return typeMismatchMsg(value, declared), false
			}
		}
		return "", true
	default:
		return fmt.Sprintf("unknown declared type %q", declared), false
	}
}

func typeMismatchMsg(value any, declared model.DataType) string {
	return fmt.Sprintf("declared as %s but value is %T", declared, value)
}

func validateConditionalRelationships(inst *model.Instance, class *model.ClassDef, propertyId string, rs model.RuleSet, result *model.ValidationResult) {
	for idx, branch := range rs.Branches {
		validateBoolExprRelationships(inst, class, propertyId, idx, branch.When, result)
	}
}

func validateBoolExprRelationships(inst *model.Instance, class *model.ClassDef, propertyId string, branchIndex int, be model.BoolExpr, result *model.ValidationResult) {
	switch be.Kind {
	case model.BoolSimpleAll:
		for _, relName := range be.SimpleAll {
			if class.RelationshipByIdOrName(relName) == nil {
				reportUndefinedRelationship(inst, propertyId, branchIndex, relName, result)
			}
		}
	case model.BoolAll, model.BoolAny, model.BoolNone:
		for _, p := range be.Predicates {
			validatePredicateRelationship(inst, class, propertyId, branchIndex, p, result)
		}
	}
}

func validatePredicateRelationship(inst *model.Instance, class *model.ClassDef, propertyId string, branchIndex int, p model.Predicate, result *model.ValidationResult) {
	switch p.Kind {
	case model.PredHas, model.PredCount, model.PredHasTargets, model.PredIncludesUniverse:
		if p.Rel != "" && class.RelationshipByIdOrName(p.Rel) == nil {
			reportUndefinedRelationship(inst, propertyId, branchIndex, p.Rel, result)
		}
	}
}

func reportUndefinedRelationship(inst *model.Instance, propertyId string, branchIndex int, relName string, result *model.ValidationResult) {
	result.Valid = false
	result.Errors = append(result.Errors, model.ValidationError{
		InstanceId:   inst.Id,
		ErrorType:    model.ErrRelationshipError,
		Message:      fmt.Sprintf("conditional property %q rule %d references undefined relationship %q", propertyId, branchIndex+1, relName),
		PropertyName: strPtr(propertyId),
		Expected:     strPtr("defined relationship"),
		Actual:       strPtr(relName),
	})
}

// validateRelationships checks every relationship on inst: that it is
// declared on the class, that its declared targets exist in schema, and
// that its resolved target ids actually exist (of the right type) in
// allInstances. Every relationship key is checked, not just the first.
func validateRelationships(inst *model.Instance, class *model.ClassDef, schema *model.Schema, allInstances []model.Instance, result *model.ValidationResult) {
	for relKey := range inst.Relationships {
		if class.RelationshipByIdOrName(relKey) == nil {
			result.Valid = false
			result.Errors = append(result.Errors, model.ValidationError{
				InstanceId:   inst.Id,
				ErrorType:    model.ErrRelationshipError,
				Message:      fmt.Sprintf("relationship %q is not defined in class %q (checked both id and name)", relKey, class.Name),
				PropertyName: strPtr(relKey),
				Actual:       strPtr(relKey),
			})
		}
	}

	for i := range class.Relationships {
		def := &class.Relationships[i]
		for _, targetClassId := range def.Targets {
			if schema.ClassByID(targetClassId) == nil {
				result.Valid = false
				result.Errors = append(result.Errors, model.ValidationError{
					InstanceId:   inst.Id,
					ErrorType:    model.ErrClassNotFound,
					Message:      fmt.Sprintf("relationship %q references non-existent class id %q", def.Name, targetClassId),
					PropertyName: strPtr(def.Name),
					Expected:     strPtr("valid class id"),
					Actual:       strPtr(targetClassId),
				})
			}
		}
	}

	instanceById := make(map[string]*model.Instance, len(allInstances))
	for i := range allInstances {
		instanceById[allInstances[i].Id] = &allInstances[i]
	}

	for relKey, sel := range inst.Relationships {
		def := class.RelationshipByIdOrName(relKey)
		if def == nil {
			continue
		}
		targetIds, explicit := explicitTargetIds(sel)
		if !explicit {
			result.Warnings = append(result.Warnings, model.ValidationWarning{
				InstanceId:   inst.Id,
				WarningType:  model.WarnRelationshipNotValidated,
				Message:      fmt.Sprintf("relationship %q uses a %s selection, which is resolved at expansion time, not during validation", relKey, sel.Kind),
				PropertyName: strPtr(relKey),
			})
			continue
		}
		validTargets := make(map[string]bool, len(def.Targets))
		for _, t := range def.Targets {
			validTargets[t] = true
		}
		for _, targetId := range targetIds {
			target, ok := instanceById[targetId]
			if !ok {
				result.Valid = false
				result.Errors = append(result.Errors, model.ValidationError{
					InstanceId:   inst.Id,
					ErrorType:    model.ErrRelationshipError,
					Message:      fmt.Sprintf("relationship %q references non-existent instance %q", relKey, targetId),
					PropertyName: strPtr(relKey),
					Actual:       strPtr(targetId),
				})
				continue
			}
			if len(validTargets) > 0 && !validTargets[target.ClassId] {
				result.Valid = false
				result.Errors = append(result.Errors, model.ValidationError{
					InstanceId:   inst.Id,
					ErrorType:    model.ErrRelationshipError,
					Message:      fmt.Sprintf("relationship %q target %q has class %q, not one of the declared targets", relKey, targetId, target.ClassId),
					PropertyName: strPtr(relKey),
					Actual:       strPtr(target.ClassId),
				})
			}
		}
		checkQuantifier(inst, relKey, def, targetIds, allInstances, result)
	}
}

// explicitTargetIds returns the concrete id list of a selection, and
// whether the selection is explicit at all. Filter, all, and
// pool-based-non-id selections return false: they are resolved at
// expansion time, not during validation.
func explicitTargetIds(sel model.RelationshipSelection) ([]string, bool) {
	switch sel.Kind {
	case model.SelSimpleIds, model.SelIds:
		return sel.Ids, true
	case model.SelPoolBased:
		if sel.Selection != nil && sel.Selection.Kind == model.SpecIds {
			return sel.Selection.Ids, true
		}
	}
	return nil, false
}

// checkQuantifier verifies a fully resolved selection's cardinality
// against the relationship's quantifier. The universe for an All
// quantifier is every instance of the configured universe class.
func checkQuantifier(inst *model.Instance, relKey string, def *model.RelationshipDef, targetIds []string, allInstances []model.Instance, result *model.ValidationResult) {
	hasUniverse := def.Universe != nil
	universeSize := 0
	if hasUniverse {
		for i := range allInstances {
			if allInstances[i].ClassId == *def.Universe {
				universeSize++
			}
		}
	}
	if err := def.Quantifier.Check(len(targetIds), hasUniverse, universeSize); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, model.ValidationError{
			InstanceId:   inst.Id,
			ErrorType:    model.ErrRelationshipError,
			Message:      fmt.Sprintf("relationship %q quantifier violation: %s", relKey, err.Error()),
			PropertyName: strPtr(relKey),
		})
	}
}
