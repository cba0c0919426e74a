package services

import "time"

// AppConfig collects the collaborators and knobs shared by the workflows.
type AppConfig struct {
	Policy        WindowPolicy
	Abandonment   AbandonmentPolicy
	Notifier      Notifier
	Narrator      NarrativeGenerator
	AdminBaseURL  string
	SweepLeaseTTL time.Duration
	Clock         Clock
}

// App wires every workflow onto one store.
type App struct {
	Store         Store
	Ledger        *Ledger
	Dispatcher    *Dispatcher
	Cancellations *CancellationService
	Extensions    *ExtensionService
	Approvals     *ApprovalService
	Intake        *IntakeService
	Transfer      *TransferSweep
	Abandonment   *AbandonmentMonitor
	Sweeps        *SweepRunner
	Notifications *AsyncNotifier
}

func NewApp(store Store, cfg AppConfig) *App {
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}
	notifications := NewAsyncNotifier(cfg.Notifier)
	cfg.Notifier = notifications
	opts := WorkflowOptions{
		Policy:       cfg.Policy,
		AdminBaseURL: cfg.AdminBaseURL,
		Clock:        cfg.Clock,
	}

	ledger := NewLedger(store, cfg.Clock)
	dispatcher := NewDispatcher(store, ledger, cfg.Clock)
	transfer := NewTransferSweep(store, dispatcher, cfg.Clock)
	abandonment := NewAbandonmentMonitor(store, cfg.Notifier, cfg.Clock, cfg.Abandonment, cfg.AdminBaseURL)

	return &App{
		Store:         store,
		Ledger:        ledger,
		Dispatcher:    dispatcher,
		Cancellations: NewCancellationService(store, NewCompetitorChecker(store), cfg.Narrator, cfg.Notifier, opts),
		Extensions:    NewExtensionService(store, cfg.Notifier, opts),
		Approvals:     NewApprovalService(store, ledger, cfg.Notifier, cfg.Clock),
		Intake:        NewIntakeService(store, cfg.Clock),
		Transfer:      transfer,
		Abandonment:   abandonment,
		Sweeps:        NewSweepRunner(store, cfg.Clock, cfg.SweepLeaseTTL, transfer, abandonment),
		Notifications: notifications,
	}
}
