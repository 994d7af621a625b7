/*
codec.go - Keyed-record encoding of the per-user document

PURPOSE:
  Stores persist one record per (section, entity id). This file converts
  between the Document shape and that record stream so every store
  serializes entities identically.
*/
package ledger

import (
	"encoding/json"
	"fmt"
)

// SettingsRecordID is the fixed entity id of the single settings record.
const SettingsRecordID = "settings"

// EntityRecord is one keyed entity as stored by the document stores.
type EntityRecord struct {
	Section Section
	ID      string
	Data    json.RawMessage
}

// Records flattens the entities present in a partial document into keyed
// records.
func (d *Document) Records() ([]EntityRecord, error) {
	var out []EntityRecord
	add := func(section Section, id string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s %q: %w", section, id, err)
		}
		out = append(out, EntityRecord{Section: section, ID: id, Data: data})
		return nil
	}

	if d.Settings != nil {
		if err := add(SectionSettings, SettingsRecordID, d.Settings); err != nil {
			return nil, err
		}
	}
	for _, acc := range d.BankAccounts {
		if err := add(SectionBankAccounts, string(acc.ID), acc); err != nil {
			return nil, err
		}
	}
	for _, tx := range d.Transactions {
		if err := add(SectionTransactions, string(tx.ID), tx); err != nil {
			return nil, err
		}
	}
	for _, inv := range d.Investments {
		if err := add(SectionInvestments, string(inv.ID), inv); err != nil {
			return nil, err
		}
	}
	for _, g := range d.Goals {
		if err := add(SectionGoals, string(g.ID), g); err != nil {
			return nil, err
		}
	}
	for _, ap := range d.AutoPays {
		if err := add(SectionAutoPays, string(ap.ID), ap); err != nil {
			return nil, err
		}
	}
	for _, c := range d.Categories {
		if err := add(SectionCategories, string(c.ID), c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AppendRecord decodes one keyed record into the document. Unknown
// sections are tolerated: the remote document is schemaless and other
// writers may store fields this build does not model.
func (d *Document) AppendRecord(section Section, data []byte) error {
	switch section {
	case SectionSettings:
		var v Settings
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode settings: %w", err)
		}
		d.Settings = &v
	case SectionBankAccounts:
		var v BankAccount
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode account: %w", err)
		}
		d.BankAccounts = append(d.BankAccounts, v)
	case SectionTransactions:
		var v Transaction
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode transaction: %w", err)
		}
		d.Transactions = append(d.Transactions, v)
	case SectionInvestments:
		var v Investment
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode investment: %w", err)
		}
		d.Investments = append(d.Investments, v)
	case SectionGoals:
		var v Goal
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode goal: %w", err)
		}
		d.Goals = append(d.Goals, v)
	case SectionAutoPays:
		var v AutoPay
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode auto-pay: %w", err)
		}
		d.AutoPays = append(d.AutoPays, v)
	case SectionCategories:
		var v Category
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode category: %w", err)
		}
		d.Categories = append(d.Categories, v)
	}
	return nil
}
