package dataclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
	"compact-connect-backend/internal/schema"
)

// PutLicense stores a jurisdiction-uploaded license and upserts its
// provider. The provider takes its name and status from the license only
// when the license is its home license; registration and privilege
// jurisdictions are never touched. Both writes land together or not at all.
func (c *Client) PutLicense(ctx context.Context, license *schema.License) (err error) {
	ctx, span := c.startSpan(ctx, "PutLicense", license.Compact)
	defer func() { finish(span, err) }()

	if err := c.checkCompact(license.Compact); err != nil {
		return err
	}
	licenseType, ok := c.cfg.LicenseTypeByAbbreviation(license.Compact, license.LicenseTypeAbbreviation)
	if !ok || licenseType.Name != license.LicenseType {
		return apperrors.Validation(apperrors.CodeInvalidRequest, "invalid license").
			WithDetailsf("unknown license type %q", license.LicenseType).
			Build()
	}

	out, err := c.getItem(ctx, &dynamodb.GetItemInput{
		TableName:      c.providerTable(),
		Key:            itemKey(schema.ProviderPK(license.Compact, license.ProviderID), schema.ProviderSK(license.Compact)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return apperrors.FromAWS(err, apperrors.CodeStorageFailure, "PutLicense")
	}

	now := c.cfg.Now()
	stored := *license
	stored.DateOfUpdate = now

	var provider *schema.Provider
	var unchanged expression.ConditionBuilder
	if len(out.Item) == 0 {
		provider = &schema.Provider{
			Compact:    license.Compact,
			ProviderID: license.ProviderID,
		}
		applyHomeLicense(provider, &stored)
		unchanged = expression.Name(schema.AttrPK).AttributeNotExists()
	} else {
		provider, err = schema.ProviderFromItem(out.Item)
		if err != nil {
			return c.integrityFailure("PutLicense", err)
		}
		if provider.LicenseJurisdiction == license.Jurisdiction && provider.LicenseType == license.LicenseType {
			applyHomeLicense(provider, &stored)
		}
		unchanged = expression.Name("dateOfUpdate").Equal(expression.Value(rawValue{out.Item["dateOfUpdate"]}))
	}
	provider.DateOfUpdate = now

	txn := newTransaction(c.providerTable())
	txn.put(&stored, nil)
	txn.put(provider, &unchanged)
	if err := c.commit(ctx, "PutLicense", txn); err != nil {
		if conditionFailedAt(err, 1) {
			return apperrors.Conflict(apperrors.CodeTransactionFailed, "provider changed during license upload").
				WithOperation("PutLicense").
				WithRetryable(true).
				Build()
		}
		return err
	}

	c.logger.Info("Stored license",
		zap.String("compact", license.Compact),
		zap.String("providerId", license.ProviderID),
		zap.String("jurisdiction", license.Jurisdiction),
		zap.String("licenseType", license.LicenseType),
	)
	return nil
}

func applyHomeLicense(p *schema.Provider, l *schema.License) {
	p.FamilyName = l.FamilyName
	p.GivenName = l.GivenName
	p.MiddleName = l.MiddleName
	p.Suffix = l.Suffix
	p.NPI = l.NPI
	p.LicenseJurisdiction = l.Jurisdiction
	p.LicenseType = l.LicenseType
	p.JurisdictionUploadedLicenseStatus = l.JurisdictionUploadedLicenseStatus
	p.DateOfExpiration = l.DateOfExpiration
}

// GetLicensesByJurisdiction lists the licenses a jurisdiction has uploaded,
// ordered by family then given name.
func (c *Client) GetLicensesByJurisdiction(ctx context.Context, compact, jurisdiction string, pagination Pagination) (page *Page[*schema.License], err error) {
	ctx, span := c.startSpan(ctx, "GetLicensesByJurisdiction", compact)
	defer func() { finish(span, err) }()

	if err := c.checkCompact(compact); err != nil {
		return nil, err
	}

	keyCond := expression.Key(schema.AttrLicenseGSIPK).Equal(expression.Value(schema.LicenseGSIPK(compact, jurisdiction)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, expressionError(err)
	}

	items, lastKey, err := c.collectPage(ctx, pageQuery{
		operation: "GetLicensesByJurisdiction",
		input: &dynamodb.QueryInput{
			TableName:                 c.providerTable(),
			IndexName:                 aws.String(c.cfg.Tables.LicenseGSIName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
		keyAttrs:   []string{schema.AttrPK, schema.AttrSK, schema.AttrLicenseGSIPK, schema.AttrLicenseGSISK},
		pagination: pagination,
	})
	if err != nil {
		return nil, err
	}

	licenses := make([]*schema.License, 0, len(items))
	for _, item := range items {
		license, err := schema.LicenseFromItem(item)
		if err != nil {
			return nil, c.integrityFailure("GetLicensesByJurisdiction", err)
		}
		licenses = append(licenses, license)
	}
	return &Page[*schema.License]{
		Items:    licenses,
		LastKey:  lastKey,
		PageSize: pagination.GetEffectiveLimit(),
	}, nil
}
