package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/registry"
	"github.com/roach88/tokenswap/internal/settings"
	"github.com/roach88/tokenswap/internal/store"
	"github.com/roach88/tokenswap/internal/swap"
	"github.com/roach88/tokenswap/internal/testutil"
	"github.com/roach88/tokenswap/internal/tokens"
)

// DefaultPrincipals are the aliases every scenario can use.
var DefaultPrincipals = map[string]string{
	"swap":        "rrkah-fqaaa-aaaaa-aaaaq-cai",
	"alice":       "ryjl3-tyaaa-aaaaa-aaaba-cai",
	"bob":         "rkp4c-7iaaa-aaaaa-aaaca-cai",
	"operator":    "r7inp-6aaaa-aaaaa-aaabq-cai",
	"anonymous":   "2vxsx-fae",
	"old_ledger":  "rno2w-sqaaa-aaaaa-aaacq-cai",
	"new_ledger":  "y4gw4-rqkbi-faucq-kbifa-ucq",
	"old_indexer": "oq36z-ailbm-fqwcy-lbmfq-wcy",
	"new_indexer": "3nygy-vqmbq-gayda-mbqga-yda",
}

// Harness is the test execution engine.
// It runs scenarios with a fake clock, fixed request tokens and an
// in-memory database.
type Harness struct {
	svc    *swap.Service
	fakes  *testutil.Fakes
	clock  *testutil.FakeClock
	names  map[string]account.Principal
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database and fresh fakes.
// A non-nil error means the scenario could not be executed; failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	st, err := store.Open(":memory:", store.WithClock(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, clock, scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.seed(scenario); err != nil {
		return nil, fmt.Errorf("failed to seed history: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Fakes: h.fakes,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, clock *testutil.FakeClock, scenario *Scenario) (*Harness, error) {
	names := make(map[string]account.Principal, len(DefaultPrincipals)+len(scenario.Principals))
	for _, aliases := range []map[string]string{DefaultPrincipals, scenario.Principals} {
		for alias, text := range aliases {
			p, err := account.ParsePrincipal(text)
			if err != nil {
				return nil, fmt.Errorf("principal %q: %w", alias, err)
			}
			names[alias] = p
		}
	}

	h := &Harness{
		clock:  clock,
		names:  names,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	cfg, err := settings.FromMap(scenario.Settings)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	controllers := make([]account.Principal, 0, len(scenario.Controllers))
	for _, alias := range scenario.Controllers {
		p, err := h.principal(alias)
		if err != nil {
			return nil, fmt.Errorf("controllers: %w", err)
		}
		controllers = append(controllers, p)
	}

	var ids ledger.ServiceIDs
	if !scenario.Inactive {
		ids = ledger.ServiceIDs{
			OldLedger:  names["old_ledger"],
			NewLedger:  names["new_ledger"],
			OldIndexer: names["old_indexer"],
			NewIndexer: names["new_indexer"],
		}
	}

	self := names["swap"]
	h.fakes = testutil.NewFakes(self)
	if id, ok := scenario.NextTxID["old"]; ok {
		h.fakes.OldLedger.NextID = ledger.TxID(id)
	}
	if id, ok := scenario.NextTxID["new"]; ok {
		h.fakes.NewLedger.NextID = ledger.TxID(id)
	}

	h.svc = swap.New(self, h.fakes,
		swap.WithSettings(cfg),
		swap.WithServiceIDs(ids),
		swap.WithControllers(controllers...),
		swap.WithRegistry(registry.NewDurable(st)),
		swap.WithConfigStore(st),
		swap.WithClock(h.clock),
		swap.WithRequestTokens(testutil.NewFixedTokenGenerator(scenario.RequestToken)),
	)
	return h, nil
}

// seed loads the scenario history into the fake indexers.
func (h *Harness) seed(scenario *Scenario) error {
	for i, rec := range scenario.History.Old {
		if err := h.deposit("old", rec); err != nil {
			return fmt.Errorf("history.old[%d]: %w", i, err)
		}
	}
	for i, rec := range scenario.History.New {
		if err := h.deposit("new", rec); err != nil {
			return fmt.Errorf("history.new[%d]: %w", i, err)
		}
	}
	return nil
}

func (h *Harness) deposit(name string, rec TxRecord) error {
	from, err := h.account(rec.From)
	if err != nil {
		return err
	}
	to, err := h.account(rec.To)
	if err != nil {
		return err
	}

	scale := tokens.ScaleNew
	if name == "old" {
		scale = tokens.ScaleOld
	}
	amount, err := tokens.Parse(scale, rec.Amount)
	if err != nil {
		return err
	}

	tx := ledger.Transaction{
		ID:   ledger.TxID(rec.ID),
		Kind: ledger.KindTransfer,
		Transfer: &ledger.Transfer{
			From:   from,
			To:     to,
			Amount: amount,
		},
	}
	if name == "old" {
		h.fakes.OldIndexer.Add(tx)
	} else {
		h.fakes.NewIndexer.Add(tx)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		event, err := h.executeStep(ctx, step)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Op, err)
		}
		recorded := result.AddTrace(event)

		if step.Expect != nil {
			if recorded.Outcome != step.Expect.Outcome {
				result.AddError(fmt.Sprintf("flow[%d] %s: expected outcome %s, got %s %v",
					i, step.Op, step.Expect.Outcome, recorded.Outcome, recorded.Result))
			} else if !matchArgs(recorded.Result, step.Expect.Result) {
				result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v",
					i, step.Op, step.Expect.Result, recorded.Result))
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"outcome", recorded.Outcome,
		)
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step FlowStep) (TraceEvent, error) {
	event := TraceEvent{Op: step.Op, Caller: step.Caller, Outcome: OutcomeOK}

	caller := account.Anonymous
	if step.Caller != "" {
		p, err := h.principal(step.Caller)
		if err != nil {
			return event, err
		}
		caller = p
	}

	switch step.Op {
	case OpConvert:
		acct, err := h.account(step.Account)
		if err != nil {
			return event, err
		}
		args := swap.ConvertArgs{Caller: caller, Account: acct}
		event.Args = map[string]any{"account": step.Account}
		if step.Amount != "" {
			amount, err := tokens.Parse(tokens.ScaleNew, step.Amount)
			if err != nil {
				return event, err
			}
			args.Amount = &amount
			event.Args["amount"] = step.Amount
		}
		id, err := h.svc.ConvertAccount(ctx, args)
		return h.complete(event, map[string]any{"tx_id": id}, err)

	case OpGetAccount:
		acct, err := h.account(step.Account)
		if err != nil {
			return event, err
		}
		event.Args = map[string]any{"account": step.Account}
		indexed, err := h.svc.GetAccount(ctx, acct)
		return h.complete(event, indexed, err)

	case OpBurn:
		amount, err := tokens.Parse(tokens.ScaleOld, step.Amount)
		if err != nil {
			return event, err
		}
		event.Args = map[string]any{"amount": step.Amount}
		id, err := h.svc.BurnOldTokens(ctx, caller, amount)
		return h.complete(event, map[string]any{"tx_id": id}, err)

	case OpSetSettings:
		cfg, err := settings.FromMap(step.Settings)
		if err != nil {
			return event, err
		}
		event.Args = step.Settings
		updated, err := h.svc.SetSettings(ctx, caller, cfg)
		return h.complete(event, map[string]any{"updated": updated}, err)

	case OpSetServiceIDs:
		ids, err := h.serviceIDs(step.ServiceIDs)
		if err != nil {
			return event, err
		}
		event.Args = map[string]any{}
		for k, v := range step.ServiceIDs {
			event.Args[k] = v
		}
		err = h.svc.SetServiceIDs(ctx, caller, ids)
		return h.complete(event, map[string]any{"active": ids.Active()}, err)

	case OpAdvance:
		h.clock.Advance(step.Duration)
		event.Args = map[string]any{"duration": step.Duration.String()}
		return h.complete(event, map[string]any{"now": h.clock.Now()}, nil)

	case OpDeposit:
		if err := h.deposit(step.Ledger, *step.Tx); err != nil {
			return event, err
		}
		event.Args = map[string]any{
			"ledger": step.Ledger,
			"id":     step.Tx.ID,
			"from":   step.Tx.From,
			"to":     step.Tx.To,
			"amount": step.Tx.Amount,
		}
		return h.complete(event, nil, nil)

	case OpReject:
		var rejection error
		if step.Reject != "" {
			rejection = &ledger.TransferError{Code: ledger.TransferErrorCode(step.Reject)}
		}
		h.ledger(step.Ledger).Err = rejection
		event.Args = map[string]any{"ledger": step.Ledger, "code": step.Reject}
		return h.complete(event, nil, nil)

	case OpPauseIndexer:
		if step.Ledger == "old" {
			h.fakes.OldLedger.IndexInto(nil)
		} else {
			h.fakes.NewLedger.IndexIntoNew(nil)
		}
		event.Args = map[string]any{"ledger": step.Ledger}
		return h.complete(event, nil, nil)
	}
	return event, fmt.Errorf("unknown op %q", step.Op)
}

// complete records the outcome of an operation. Workflow errors and ledger
// rejections become the outcome; anything else aborts the run.
func (h *Harness) complete(event TraceEvent, value any, err error) (TraceEvent, error) {
	if err != nil {
		var se *swap.Error
		if te, ok := ledger.AsTransferError(err); ok {
			event.Outcome = "LEDGER_REJECTED"
			value = te
		} else if errors.As(err, &se) {
			event.Outcome = string(se.Code)
			value = se
		} else {
			return event, err
		}
	}
	if value == nil {
		return event, nil
	}
	m, err := toMap(value)
	if err != nil {
		return event, err
	}
	event.Result = m
	return event, nil
}

func (h *Harness) ledger(name string) *testutil.FakeLedger {
	if name == "old" {
		return h.fakes.OldLedger
	}
	return h.fakes.NewLedger
}

func (h *Harness) principal(alias string) (account.Principal, error) {
	if p, ok := h.names[alias]; ok {
		return p, nil
	}
	return account.ParsePrincipal(alias)
}

// account resolves "alias" or "alias.hexsubaccount".
func (h *Harness) account(ref string) (account.Account, error) {
	owner, sub, _ := strings.Cut(ref, ".")
	p, err := h.principal(owner)
	if err != nil {
		return account.Account{}, err
	}
	subaccount, err := account.ParseSubaccount(sub)
	if err != nil {
		return account.Account{}, err
	}
	return account.Account{Owner: p, Subaccount: subaccount}, nil
}

func (h *Harness) serviceIDs(refs map[string]string) (ledger.ServiceIDs, error) {
	var ids ledger.ServiceIDs
	slots := map[string]*account.Principal{
		"old_ledger":  &ids.OldLedger,
		"new_ledger":  &ids.NewLedger,
		"old_indexer": &ids.OldIndexer,
		"new_indexer": &ids.NewIndexer,
	}
	for key, alias := range refs {
		slot, ok := slots[key]
		if !ok {
			return ids, fmt.Errorf("unknown service %q", key)
		}
		p, err := h.principal(alias)
		if err != nil {
			return ids, err
		}
		*slot = p
	}
	return ids, nil
}

// toMap converts a value to its JSON object form. Numbers are kept as
// json.Number so ids and amounts survive exactly.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
