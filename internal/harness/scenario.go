package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario drives a swap service through a sequence of operations against
// in-process ledgers and indexers, then checks the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RequestToken is stamped on every request. Defaults to
	// "test-request-default" so golden output is stable.
	RequestToken string `yaml:"request_token,omitempty"`

	// Principals adds or overrides principal aliases. Values are the
	// textual principal form.
	Principals map[string]string `yaml:"principals,omitempty"`

	// Controllers are aliases of the service's controllers.
	Controllers []string `yaml:"controllers,omitempty"`

	// Settings is a settings document overlaid onto the defaults.
	Settings map[string]any `yaml:"settings,omitempty"`

	// Inactive starts the service with placeholder service identities.
	Inactive bool `yaml:"inactive,omitempty"`

	// History seeds both ledgers before the flow runs.
	History History `yaml:"history,omitempty"`

	// NextTxID sets the id of the first payout per ledger ("old", "new").
	NextTxID map[string]uint64 `yaml:"next_tx_id,omitempty"`

	// Flow is the sequence of steps to run.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// History lists transactions already on each ledger.
type History struct {
	Old []TxRecord `yaml:"old,omitempty"`
	New []TxRecord `yaml:"new,omitempty"`
}

// TxRecord is a transfer on a ledger. Accounts are written as an alias or
// principal, optionally followed by "." and a hex subaccount.
type TxRecord struct {
	ID     uint64 `yaml:"id"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
}

// FlowStep is one operation. Which fields apply depends on Op.
type FlowStep struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Caller is the alias of the calling principal. Empty means anonymous.
	Caller string `yaml:"caller,omitempty"`

	// Account is the target of convert and get_account.
	Account string `yaml:"account,omitempty"`

	// Amount is the requested amount of convert or burn.
	Amount string `yaml:"amount,omitempty"`

	// Settings is the document for set_settings.
	Settings map[string]any `yaml:"settings,omitempty"`

	// ServiceIDs maps old_ledger, new_ledger, old_indexer and new_indexer
	// to aliases for set_service_ids. Missing entries are placeholders.
	ServiceIDs map[string]string `yaml:"service_ids,omitempty"`

	// Duration is how far advance moves the clock.
	Duration time.Duration `yaml:"duration,omitempty"`

	// Ledger selects "old" or "new" for deposit, reject, pause_indexer.
	Ledger string `yaml:"ledger,omitempty"`

	// Tx is the transaction appended by deposit.
	Tx *TxRecord `yaml:"tx,omitempty"`

	// Reject is the ledger error code returned by every later call on
	// Ledger. Empty clears it.
	Reject string `yaml:"reject,omitempty"`

	// Expect checks the step's outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Flow operations.
const (
	OpConvert       = "convert"
	OpGetAccount    = "get_account"
	OpBurn          = "burn"
	OpSetSettings   = "set_settings"
	OpSetServiceIDs = "set_service_ids"
	OpAdvance       = "advance"
	OpDeposit       = "deposit"
	OpReject        = "reject"
	OpPauseIndexer  = "pause_indexer"
)

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Outcome is "ok" or an error code (e.g. ON_COOLDOWN, LEDGER_REJECTED).
	Outcome string `yaml:"outcome"`

	// Result is a subset of the expected result fields.
	Result map[string]any `yaml:"result,omitempty"`
}

// OutcomeOK is the outcome of a successful step.
const OutcomeOK = "ok"

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Outcome optionally narrows trace_contains and trace_count.
	Outcome string `yaml:"outcome,omitempty"`

	// Result is a subset match against the step result (trace_contains).
	Result map[string]any `yaml:"result,omitempty"`

	// Ops is the expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences (trace_count, ledger_calls).
	Count int `yaml:"count,omitempty"`

	// Table, Where and Expect query the database (final_state).
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Ledger and Kind select the calls counted by ledger_calls.
	Ledger string `yaml:"ledger,omitempty"`
	Kind   string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertLedgerCalls   = "ledger_calls"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so "assertion:" vs "assertions:" is caught.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for name := range s.NextTxID {
		if !validLedger(name) {
			return fmt.Errorf("next_tx_id: unknown ledger %q", name)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *FlowStep) error {
	switch step.Op {
	case OpConvert, OpGetAccount:
		if step.Account == "" {
			return fmt.Errorf("flow[%d]: account is required for %s", index, step.Op)
		}
	case OpBurn:
		if step.Amount == "" {
			return fmt.Errorf("flow[%d]: amount is required for burn", index)
		}
	case OpSetSettings, OpSetServiceIDs:
	case OpAdvance:
		if step.Duration <= 0 {
			return fmt.Errorf("flow[%d]: duration must be positive for advance", index)
		}
	case OpDeposit:
		if !validLedger(step.Ledger) {
			return fmt.Errorf("flow[%d]: ledger must be old or new for deposit", index)
		}
		if step.Tx == nil {
			return fmt.Errorf("flow[%d]: tx is required for deposit", index)
		}
	case OpReject, OpPauseIndexer:
		if !validLedger(step.Ledger) {
			return fmt.Errorf("flow[%d]: ledger must be old or new for %s", index, step.Op)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}

	if step.Expect != nil && step.Expect.Outcome == "" {
		return fmt.Errorf("flow[%d].expect: outcome is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertLedgerCalls:
		if !validLedger(a.Ledger) {
			return fmt.Errorf("assertions[%d]: ledger must be old or new for ledger_calls", index)
		}
		if a.Kind != "transfer" && a.Kind != "burn" {
			return fmt.Errorf("assertions[%d]: kind must be transfer or burn for ledger_calls", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validLedger(name string) bool {
	return name == "old" || name == "new"
}
