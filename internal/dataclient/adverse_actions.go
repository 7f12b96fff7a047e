package dataclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/events"
	"compact-connect-backend/internal/schema"
)

// AdverseActionRequest describes an adverse action to record.
type AdverseActionRequest struct {
	Compact                         string               `validate:"required"`
	ProviderID                      string               `validate:"required,uuid"`
	Jurisdiction                    string               `validate:"required,len=2"`
	LicenseTypeAbbreviation         string               `validate:"required"`
	ActionAgainst                   schema.ActionAgainst `validate:"required,oneof=license privilege"`
	BlocksFuturePrivileges          bool
	ClinicalPrivilegeActionCategory schema.ClinicalPrivilegeActionCategory `validate:"required"`
	CreationEffectiveDate           schema.Date                            `validate:"required,datetime=2006-01-02"`
	SubmittingUser                  string                                 `validate:"required"`
}

// CreateAdverseAction records an adverse action against an existing license
// or privilege and touches the target's update date.
func (c *Client) CreateAdverseAction(ctx context.Context, req AdverseActionRequest) (action *schema.AdverseAction, err error) {
	ctx, span := c.startSpan(ctx, "CreateAdverseAction", req.Compact)
	defer func() { finish(span, err) }()

	if err := inputValidator.Struct(req); err != nil {
		return nil, apperrors.Validation(apperrors.CodeInvalidRequest, "invalid adverse action").
			WithDetails(err.Error()).
			Build()
	}
	if err := c.checkCompact(req.Compact); err != nil {
		return nil, err
	}
	licenseType, ok := c.cfg.LicenseTypeByAbbreviation(req.Compact, req.LicenseTypeAbbreviation)
	if !ok {
		return nil, apperrors.Validation(apperrors.CodeInvalidRequest, "invalid adverse action").
			WithDetailsf("unknown license type %q", req.LicenseTypeAbbreviation).
			Build()
	}

	now := c.cfg.Now()
	action = schema.NewAdverseAction()
	action.Compact = req.Compact
	action.ProviderID = req.ProviderID
	action.Jurisdiction = req.Jurisdiction
	action.LicenseTypeAbbreviation = licenseType.Abbreviation
	action.LicenseType = licenseType.Name
	action.ActionAgainst = req.ActionAgainst
	action.BlocksFuturePrivileges = req.BlocksFuturePrivileges
	action.ClinicalPrivilegeActionCategory = req.ClinicalPrivilegeActionCategory
	action.CreationEffectiveDate = req.CreationEffectiveDate
	action.SubmittingUser = req.SubmittingUser
	action.CreationDate = now
	action.DateOfUpdate = now

	targetSK := schema.LicenseSK(req.Compact, req.Jurisdiction, licenseType.Abbreviation)
	notFoundCode := apperrors.CodeLicenseNotFound
	if req.ActionAgainst == schema.ActionAgainstPrivilege {
		targetSK = schema.PrivilegeSK(req.Compact, req.Jurisdiction, licenseType.Abbreviation)
		notFoundCode = apperrors.CodePrivilegeNotFound
	}

	isNew := expression.Name(schema.AttrPK).AttributeNotExists()
	targetExists := expression.Name(schema.AttrPK).AttributeExists()
	txn := newTransaction(c.providerTable())
	txn.put(action, &isNew)
	txn.update(
		itemKey(action.PK(), targetSK),
		expression.Set(expression.Name("dateOfUpdate"), expression.Value(now)),
		&targetExists,
	)

	if err := c.commit(ctx, "CreateAdverseAction", txn); err != nil {
		if conditionFailedAt(err, 1) {
			return nil, apperrors.NotFound(notFoundCode, string(req.ActionAgainst)+" not found").
				WithOperation("CreateAdverseAction").
				Build()
		}
		return nil, err
	}

	c.logger.Info("Created adverse action",
		zap.String("compact", req.Compact),
		zap.String("providerId", req.ProviderID),
		zap.String("adverseActionId", action.ID()),
		zap.String("actionAgainst", string(req.ActionAgainst)),
	)
	c.publish(ctx, adverseActionEvent(events.AdverseActionCreated, action))
	return action, nil
}

// AdverseActionLift identifies an adverse action and records its lift.
type AdverseActionLift struct {
	Compact                 string               `validate:"required"`
	ProviderID              string               `validate:"required,uuid"`
	ActionAgainst           schema.ActionAgainst `validate:"required,oneof=license privilege"`
	Jurisdiction            string               `validate:"required,len=2"`
	LicenseTypeAbbreviation string               `validate:"required"`
	AdverseActionID         string               `validate:"required,uuid"`
	EffectiveLiftDate       schema.Date          `validate:"required,datetime=2006-01-02"`
	LiftingUser             string               `validate:"required"`
}

// LiftAdverseAction records the lift of an adverse action. An action can be
// lifted once.
func (c *Client) LiftAdverseAction(ctx context.Context, lift AdverseActionLift) (action *schema.AdverseAction, err error) {
	ctx, span := c.startSpan(ctx, "LiftAdverseAction", lift.Compact)
	defer func() { finish(span, err) }()

	if err := inputValidator.Struct(lift); err != nil {
		return nil, apperrors.Validation(apperrors.CodeInvalidRequest, "invalid adverse action lift").
			WithDetails(err.Error()).
			Build()
	}
	if err := c.checkCompact(lift.Compact); err != nil {
		return nil, err
	}

	now := c.cfg.Now()
	cond := expression.Name(schema.AttrPK).AttributeExists().
		And(expression.Name("effectiveLiftDate").AttributeNotExists())
	upd := expression.Set(expression.Name("effectiveLiftDate"), expression.Value(lift.EffectiveLiftDate)).
		Set(expression.Name("liftingUser"), expression.Value(lift.LiftingUser)).
		Set(expression.Name("dateOfUpdate"), expression.Value(now))
	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(upd).Build()
	if err != nil {
		return nil, expressionError(err)
	}

	out, err := c.updateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: c.providerTable(),
		Key: itemKey(
			schema.ProviderPK(lift.Compact, lift.ProviderID),
			schema.AdverseActionSK(lift.Compact, lift.ActionAgainst, lift.Jurisdiction, lift.LicenseTypeAbbreviation, lift.AdverseActionID),
		),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, apperrors.FromAWS(err, apperrors.CodeStorageFailure, "LiftAdverseAction")
		}
		if len(ccf.Item) == 0 {
			return nil, apperrors.NotFound(apperrors.CodeAdverseActionNotFound, "adverse action not found").
				WithOperation("LiftAdverseAction").
				Build()
		}
		return nil, apperrors.Validation(apperrors.CodeAlreadyLifted, "adverse action has already been lifted").
			WithOperation("LiftAdverseAction").
			Build()
	}

	action, err = schema.AdverseActionFromItem(out.Attributes)
	if err != nil {
		return nil, c.integrityFailure("LiftAdverseAction", err)
	}

	c.logger.Info("Lifted adverse action",
		zap.String("compact", lift.Compact),
		zap.String("providerId", lift.ProviderID),
		zap.String("adverseActionId", lift.AdverseActionID),
	)
	c.publish(ctx, adverseActionEvent(events.AdverseActionLifted, action))
	return action, nil
}

func adverseActionEvent(detailType events.DetailType, action *schema.AdverseAction) events.Event {
	return events.Event{
		DetailType: detailType,
		Time:       action.DateOfUpdate,
		Detail: events.AdverseActionDetail{
			Compact:                 action.Compact,
			ProviderID:              action.ProviderID,
			Jurisdiction:            action.Jurisdiction,
			LicenseTypeAbbreviation: action.LicenseTypeAbbreviation,
			ActionAgainst:           string(action.ActionAgainst),
			AdverseActionID:         action.ID(),
			EventTime:               action.DateOfUpdate,
		},
	}
}
