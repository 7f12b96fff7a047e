// Package events defines the EventBridge wire format for data events and
// publishes them.
package events

import (
	"encoding/json"
	"time"
)

// Source is the EventBridge source of every event this backend emits.
const Source = "org.compactconnect.provider-data"

// DetailType identifies an event on the bus.
type DetailType string

const (
	PrivilegePurchase     DetailType = "privilege.purchase"
	PrivilegeDeactivation DetailType = "privilege.deactivation"
	AdverseActionCreated  DetailType = "adverseAction.created"
	AdverseActionLifted   DetailType = "adverseAction.lifted"

	LicenseInvestigation         DetailType = "license.investigation"
	LicenseInvestigationClosed   DetailType = "license.investigationClosed"
	PrivilegeInvestigation       DetailType = "privilege.investigation"
	PrivilegeInvestigationClosed DetailType = "privilege.investigationClosed"
)

// Event is one entry to publish. Detail is marshalled to JSON.
type Event struct {
	DetailType DetailType
	Detail     any
	Time       time.Time
	// Resources are optional ARNs or identifiers the event concerns.
	Resources []string
}

// PrivilegeDetail describes a privilege purchase or deactivation.
type PrivilegeDetail struct {
	Compact                 string    `json:"compact"`
	ProviderID              string    `json:"providerId"`
	Jurisdiction            string    `json:"jurisdiction"`
	LicenseTypeAbbreviation string    `json:"licenseTypeAbbreviation"`
	PrivilegeID             string    `json:"privilegeId"`
	EventTime               time.Time `json:"eventTime"`
}

// AdverseActionDetail describes a created or lifted adverse action.
type AdverseActionDetail struct {
	Compact                 string    `json:"compact"`
	ProviderID              string    `json:"providerId"`
	Jurisdiction            string    `json:"jurisdiction"`
	LicenseTypeAbbreviation string    `json:"licenseTypeAbbreviation"`
	ActionAgainst           string    `json:"actionAgainst"`
	AdverseActionID         string    `json:"adverseActionId"`
	EventTime               time.Time `json:"eventTime"`
}

// InvestigationDetail is the detail of the four investigation events.
// Every field is required; the consumer validates it.
type InvestigationDetail struct {
	Compact                 string `json:"compact" validate:"required"`
	ProviderID              string `json:"providerId" validate:"required,uuid"`
	Jurisdiction            string `json:"jurisdiction" validate:"required,len=2"`
	LicenseTypeAbbreviation string `json:"licenseTypeAbbreviation" validate:"required"`
	EventTime               string `json:"eventTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	InvestigationAgainst    string `json:"investigationAgainst" validate:"required"`
	InvestigationID         string `json:"investigationId" validate:"required"`
}

// Envelope is an EventBridge event as delivered to an SQS target.
type Envelope struct {
	Version    string          `json:"version"`
	ID         string          `json:"id"`
	DetailType string          `json:"detail-type"`
	Source     string          `json:"source"`
	Account    string          `json:"account"`
	Time       string          `json:"time"`
	Region     string          `json:"region"`
	Resources  []string        `json:"resources"`
	Detail     json.RawMessage `json:"detail"`
}
