package dataclient

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/events"
	"compact-connect-backend/internal/schema"
)

const attrPrivilegeCount = "privilegeCount"

var inputValidator = validator.New()

// PrivilegePurchase is a paid request for privileges in one or more
// jurisdictions, all backed by the provider's home license.
type PrivilegePurchase struct {
	Compact    string `validate:"required"`
	ProviderID string `validate:"required,uuid"`
	// Provider is the current provider record.
	Provider *schema.Provider `validate:"-"`

	Jurisdictions         []string    `validate:"required,min=1,unique,dive,len=2"`
	LicenseExpirationDate schema.Date `validate:"required,datetime=2006-01-02"`
	CompactTransactionID  string
	// ExistingPrivileges are renewed in place rather than reissued.
	ExistingPrivileges []*schema.Privilege  `validate:"-"`
	LicenseType        string               `validate:"required"`
	Attestations       []schema.Attestation `validate:"dive"`
}

// purchasePlan is a validated purchase.
type purchasePlan struct {
	licenseTypeAbbr string
	existing        map[string]*schema.Privilege
	newCount        int64
}

func (c *Client) planPurchase(p PrivilegePurchase) (*purchasePlan, error) {
	invalid := func(details string) error {
		return apperrors.Validation(apperrors.CodeInvalidPurchase, "invalid privilege purchase").
			WithOperation("CreateProviderPrivileges").
			WithDetails(details).
			Build()
	}

	if err := inputValidator.Struct(p); err != nil {
		return nil, invalid(err.Error())
	}
	if err := c.checkCompact(p.Compact); err != nil {
		return nil, err
	}
	if p.Provider == nil || p.Provider.ProviderID != p.ProviderID || p.Provider.Compact != p.Compact {
		return nil, invalid("provider record does not match the purchase")
	}
	licenseType, ok := c.cfg.LicenseTypeByName(p.Compact, p.LicenseType)
	if !ok {
		return nil, invalid("unknown license type " + p.LicenseType)
	}

	plan := &purchasePlan{
		licenseTypeAbbr: licenseType.Abbreviation,
		existing:        make(map[string]*schema.Privilege),
	}
	for _, existing := range p.ExistingPrivileges {
		if existing.LicenseTypeAbbreviation == licenseType.Abbreviation {
			plan.existing[existing.Jurisdiction] = existing
		}
	}
	for _, jurisdiction := range p.Jurisdictions {
		if !c.cfg.IsJurisdiction(jurisdiction) {
			return nil, invalid("unknown jurisdiction " + jurisdiction)
		}
		if jurisdiction == p.Provider.LicenseJurisdiction {
			return nil, invalid("cannot purchase a privilege in the home license jurisdiction")
		}
		if _, renewing := plan.existing[jurisdiction]; !renewing {
			plan.newCount++
		}
	}

	// A privilege and its update per jurisdiction, plus the license check and
	// the provider.
	if items := 2*len(p.Jurisdictions) + 2; items > maxTransactionItems {
		return nil, apperrors.Validation(apperrors.CodeInvalidRequest, "too many jurisdictions in one purchase").
			WithDetailsf("%d jurisdictions would need %d writes", len(p.Jurisdictions), items).
			Build()
	}
	return plan, nil
}

// CreateProviderPrivileges issues or renews privileges for a purchase. All
// privileges, their history entries and the provider update are written in
// one transaction, which also requires the home license to exist.
func (c *Client) CreateProviderPrivileges(ctx context.Context, p PrivilegePurchase) (privileges []*schema.Privilege, err error) {
	ctx, span := c.startSpan(ctx, "CreateProviderPrivileges", p.Compact)
	defer func() { finish(span, err) }()
	span.SetAttributes(attribute.Int("jurisdictions", len(p.Jurisdictions)))

	plan, err := c.planPurchase(p)
	if err != nil {
		return nil, err
	}

	var nextNumber int64
	if plan.newCount > 0 {
		last, err := c.claimPrivilegeNumbers(ctx, p.Compact, plan.newCount)
		if err != nil {
			return nil, err
		}
		nextNumber = last - plan.newCount + 1
	}

	now := c.cfg.Now()
	txn := newTransaction(c.providerTable())
	txn.conditionCheck(
		itemKey(
			schema.ProviderPK(p.Compact, p.ProviderID),
			schema.LicenseSK(p.Compact, p.Provider.LicenseJurisdiction, plan.licenseTypeAbbr),
		),
		expression.Name(schema.AttrPK).AttributeExists(),
	)
	for _, jurisdiction := range p.Jurisdictions {
		privilege := &schema.Privilege{
			Compact:                 p.Compact,
			ProviderID:              p.ProviderID,
			Jurisdiction:            jurisdiction,
			LicenseJurisdiction:     p.Provider.LicenseJurisdiction,
			LicenseType:             p.LicenseType,
			LicenseTypeAbbreviation: plan.licenseTypeAbbr,
			DateOfIssuance:          now,
			DateOfRenewal:           now,
			DateOfExpiration:        p.LicenseExpirationDate,
			CompactTransactionID:    p.CompactTransactionID,
			Attestations:            p.Attestations,
			AdministratorSetStatus:  schema.StatusActive,
			DateOfUpdate:            now,
		}

		update := &schema.PrivilegeUpdate{
			ProviderID:              p.ProviderID,
			Compact:                 p.Compact,
			Jurisdiction:            jurisdiction,
			LicenseType:             p.LicenseType,
			LicenseTypeAbbreviation: plan.licenseTypeAbbr,
			DateOfUpdate:            now,
		}
		if existing, ok := plan.existing[jurisdiction]; ok {
			privilege.PrivilegeID = existing.PrivilegeID
			privilege.DateOfIssuance = existing.DateOfIssuance
			update.UpdateType = schema.UpdateTypeRenewal
			update.Previous = privilegeSnapshot(existing)
		} else {
			privilege.PrivilegeID = schema.PrivilegeID(plan.licenseTypeAbbr, jurisdiction, nextNumber)
			nextNumber++
			update.UpdateType = schema.UpdateTypeIssuance
			update.Previous = map[string]any{}
		}
		update.UpdatedValues = privilegeSnapshot(privilege)

		txn.put(privilege, nil)
		txn.put(update, nil)
		privileges = append(privileges, privilege)
	}

	providerExists := expression.Name(schema.AttrPK).AttributeExists()
	txn.update(
		itemKey(schema.ProviderPK(p.Compact, p.ProviderID), schema.ProviderSK(p.Compact)),
		expression.Add(expression.Name("privilegeJurisdictions"), expression.Value(stringSet(p.Jurisdictions))).
			Set(expression.Name("dateOfUpdate"), expression.Value(now)).
			Set(expression.Name(schema.AttrProviderDateOfUpdate), expression.Value(schema.DateOfUpdateKey(now))),
		&providerExists,
	)

	if err := c.commit(ctx, "CreateProviderPrivileges", txn); err != nil {
		if conditionFailedAt(err, 0) {
			return nil, apperrors.Validation(apperrors.CodeInvalidPurchase, "invalid privilege purchase").
				WithOperation("CreateProviderPrivileges").
				WithDetailsf("no %s license in %s", plan.licenseTypeAbbr, p.Provider.LicenseJurisdiction).
				Build()
		}
		c.logger.Error("Failed to create privileges",
			zap.String("compact", p.Compact),
			zap.String("providerId", p.ProviderID),
			zap.Strings("jurisdictions", p.Jurisdictions),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Info("Created privileges",
		zap.String("compact", p.Compact),
		zap.String("providerId", p.ProviderID),
		zap.Strings("jurisdictions", p.Jurisdictions),
	)

	evts := make([]events.Event, 0, len(privileges))
	for _, privilege := range privileges {
		evts = append(evts, events.Event{
			DetailType: events.PrivilegePurchase,
			Time:       now,
			Detail: events.PrivilegeDetail{
				Compact:                 privilege.Compact,
				ProviderID:              privilege.ProviderID,
				Jurisdiction:            privilege.Jurisdiction,
				LicenseTypeAbbreviation: privilege.LicenseTypeAbbreviation,
				PrivilegeID:             privilege.PrivilegeID,
				EventTime:               now,
			},
		})
	}
	c.publish(ctx, evts...)
	return privileges, nil
}

// claimPrivilegeNumbers reserves n consecutive privilege numbers for a
// compact and returns the last of them.
func (c *Client) claimPrivilegeNumbers(ctx context.Context, compact string, n int64) (int64, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(attrPrivilegeCount), expression.Value(n))).
		Build()
	if err != nil {
		return 0, expressionError(err)
	}

	key := schema.PrivilegeCountKey(compact)
	out, err := c.updateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 c.providerTable(),
		Key:                       itemKey(key, key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, apperrors.FromAWS(err, apperrors.CodeStorageFailure, "ClaimPrivilegeNumbers")
	}

	var last int64
	if err := attributevalue.Unmarshal(out.Attributes[attrPrivilegeCount], &last); err != nil || last < n {
		return 0, apperrors.Internal(apperrors.CodeDataIntegrity, apperrors.GenericInternalMessage).
			WithOperation("ClaimPrivilegeNumbers").
			WithDetails("privilege counter returned an invalid value").
			WithCause(err).
			Build()
	}
	return last, nil
}

// privilegeSnapshot is the set of privilege fields tracked in its history.
func privilegeSnapshot(p *schema.Privilege) map[string]any {
	attestations := make([]any, 0, len(p.Attestations))
	for _, a := range p.Attestations {
		attestations = append(attestations, map[string]any{
			"attestationId": a.AttestationID,
			"version":       a.Version,
		})
	}
	snapshot := map[string]any{
		"privilegeId":            p.PrivilegeID,
		"licenseJurisdiction":    p.LicenseJurisdiction,
		"dateOfIssuance":         p.DateOfIssuance.UTC().Format(time.RFC3339),
		"dateOfRenewal":          p.DateOfRenewal.UTC().Format(time.RFC3339),
		"dateOfExpiration":       p.DateOfExpiration.String(),
		"administratorSetStatus": string(p.AdministratorSetStatus),
		"attestations":           attestations,
	}
	if p.CompactTransactionID != "" {
		snapshot["compactTransactionId"] = p.CompactTransactionID
	}
	return snapshot
}

// PrivilegeDeactivation identifies a privilege and the administrator
// deactivating it.
type PrivilegeDeactivation struct {
	Compact                 string `validate:"required"`
	ProviderID              string `validate:"required,uuid"`
	Jurisdiction            string `validate:"required,len=2"`
	LicenseTypeAbbreviation string `validate:"required"`
	Details                 schema.DeactivationDetails
}

// DeactivatePrivilege sets a privilege's administrator status to inactive
// and records the change in its history.
func (c *Client) DeactivatePrivilege(ctx context.Context, d PrivilegeDeactivation) (err error) {
	ctx, span := c.startSpan(ctx, "DeactivatePrivilege", d.Compact)
	defer func() { finish(span, err) }()

	if err := inputValidator.Struct(d); err != nil {
		return apperrors.Validation(apperrors.CodeInvalidRequest, "invalid privilege deactivation").
			WithDetails(err.Error()).
			Build()
	}
	jurisdiction := strings.ToLower(d.Jurisdiction)

	records, err := c.GetProviderUserRecords(ctx, d.Compact, d.ProviderID)
	if err != nil {
		return err
	}
	privilege, ok := records.Privilege(jurisdiction, d.LicenseTypeAbbreviation)
	if !ok {
		return apperrors.NotFound(apperrors.CodePrivilegeNotFound, "privilege not found").
			WithOperation("DeactivatePrivilege").
			Build()
	}
	if privilege.AdministratorSetStatus == schema.StatusInactive {
		return apperrors.Validation(apperrors.CodePrivilegeInactive, "privilege already deactivated").
			WithOperation("DeactivatePrivilege").
			Build()
	}

	now := c.cfg.Now()
	details := d.Details

	txn := newTransaction(c.providerTable())
	txn.put(&schema.PrivilegeUpdate{
		UpdateType:              schema.UpdateTypeDeactivation,
		ProviderID:              d.ProviderID,
		Compact:                 d.Compact,
		Jurisdiction:            jurisdiction,
		LicenseType:             privilege.LicenseType,
		LicenseTypeAbbreviation: privilege.LicenseTypeAbbreviation,
		Previous:                privilegeSnapshot(privilege),
		UpdatedValues:           map[string]any{"administratorSetStatus": string(schema.StatusInactive)},
		DeactivationDetails:     &details,
		DateOfUpdate:            now,
	}, nil)

	stillActive := expression.Name("administratorSetStatus").Equal(expression.Value(schema.StatusActive))
	txn.update(
		itemKey(privilege.PK(), privilege.SK()),
		expression.Set(expression.Name("administratorSetStatus"), expression.Value(schema.StatusInactive)).
			Set(expression.Name("dateOfUpdate"), expression.Value(now)),
		&stillActive,
	)

	providerExists := expression.Name(schema.AttrPK).AttributeExists()
	txn.update(
		itemKey(schema.ProviderPK(d.Compact, d.ProviderID), schema.ProviderSK(d.Compact)),
		expression.Set(expression.Name("dateOfUpdate"), expression.Value(now)).
			Set(expression.Name(schema.AttrProviderDateOfUpdate), expression.Value(schema.DateOfUpdateKey(now))),
		&providerExists,
	)

	if err := c.commit(ctx, "DeactivatePrivilege", txn); err != nil {
		if conditionFailedAt(err, 1) {
			return apperrors.Validation(apperrors.CodePrivilegeInactive, "privilege already deactivated").
				WithOperation("DeactivatePrivilege").
				Build()
		}
		return err
	}

	c.logger.Info("Deactivated privilege",
		zap.String("compact", d.Compact),
		zap.String("providerId", d.ProviderID),
		zap.String("jurisdiction", jurisdiction),
		zap.String("privilegeId", privilege.PrivilegeID),
	)
	c.publish(ctx, events.Event{
		DetailType: events.PrivilegeDeactivation,
		Time:       now,
		Detail: events.PrivilegeDetail{
			Compact:                 d.Compact,
			ProviderID:              d.ProviderID,
			Jurisdiction:            jurisdiction,
			LicenseTypeAbbreviation: privilege.LicenseTypeAbbreviation,
			PrivilegeID:             privilege.PrivilegeID,
			EventTime:               now,
		},
	})
	return nil
}
