// Package ofx parses OFX/QFX statement files into transactions and balances.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/calloway/cadence/internal/model"
)

// AccountBalance is a statement ledger balance for one account.
type AccountBalance struct {
	AccountID    string
	Balance      float64
	IsCreditCard bool
}

// Result holds everything extracted from one OFX file.
type Result struct {
	Transactions []model.Transaction
	Balances     []AccountBalance
}

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, func(match string) string {
		return strings.ToUpper(match)
	})

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file and returns the transactions and ledger
// balances it contains.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) (*Result, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	processedContent := p.preprocessOFX(string(content))

	resp, err := ofxgo.ParseResponse(strings.NewReader(processedContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	result := &Result{}
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			accountID := string(stmt.BankAcctFrom.AcctID)
			result.Transactions = append(result.Transactions, p.processStatement(stmt.BankTranList, accountID, false)...)

			balance, _ := stmt.BalAmt.Float64()
			result.Balances = append(result.Balances, AccountBalance{
				AccountID: accountID,
				Balance:   balance,
			})
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			accountID := string(stmt.CCAcctFrom.AcctID)
			result.Transactions = append(result.Transactions, p.processStatement(stmt.BankTranList, accountID, true)...)

			balance, _ := stmt.BalAmt.Float64()
			result.Balances = append(result.Balances, AccountBalance{
				AccountID:    accountID,
				Balance:      balance,
				IsCreditCard: true,
			})
		}
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(result.Transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return result, nil
}

// processStatement converts one OFX transaction list to our model.
func (p *Parser) processStatement(list *ofxgo.TransactionList, accountID string, isCreditCard bool) []model.Transaction {
	if list == nil {
		return nil
	}

	var transactions []model.Transaction
	for _, ofxTx := range list.Transactions {
		transactions = append(transactions, p.convertTransaction(ofxTx, accountID, isCreditCard))
	}
	return transactions
}

// convertTransaction converts an OFX transaction to our model. OFX amounts
// are signed: negative is money out, positive is money in.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID string, isCreditCard bool) model.Transaction {
	merchantName := p.extractMerchantName(ofxTx)

	amount, _ := ofxTx.TrnAmt.Float64()
	direction := model.DirectionIncome
	if amount < 0 {
		amount = -amount
		direction = model.DirectionExpense
	}

	tx := model.Transaction{
		ID:              string(ofxTx.FiTID),
		Date:            ofxTx.DtPosted.Time,
		Name:            string(ofxTx.Name),
		MerchantName:    merchantName,
		MerchantGroupID: NormalizeMerchant(merchantName),
		Amount:          amount,
		Direction:       direction,
	}
	if isCreditCard {
		tx.CreditCardID = accountID
	} else {
		tx.AccountID = accountID
	}

	tx.Hash = tx.GenerateHash()

	return tx
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner merchant name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	// Fall back to NAME field
	name := string(tx.Name)

	// Use MEMO field if NAME is generic
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	name = strings.TrimSpace(name)

	// Remove common prefixes
	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Clean up date patterns like "MM/DD" at the beginning
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

var merchantNoiseRegex = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeMerchant collapses a raw merchant name into a stable grouping
// key: lowercased, punctuation and whitespace folded to single dashes,
// trailing store numbers dropped.
func NormalizeMerchant(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = merchantNoiseRegex.ReplaceAllString(key, "-")
	key = strings.Trim(key, "-")

	// Drop a trailing run of digits (store or terminal numbers)
	parts := strings.Split(key, "-")
	for len(parts) > 1 {
		last := parts[len(parts)-1]
		if last == "" || isAllDigits(last) {
			parts = parts[:len(parts)-1]
			continue
		}
		break
	}
	return strings.Join(parts, "-")
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
