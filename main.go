package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "outreach-engine/cmd/api"
	"outreach-engine/internal/alert"
	inboundRepo "outreach-engine/internal/inbound/repository"
	inboundUsecase "outreach-engine/internal/inbound/usecase"
	outbounddomain "outreach-engine/internal/outbound/domain"
	outboundRepo "outreach-engine/internal/outbound/repository"
	outboundUsecase "outreach-engine/internal/outbound/usecase"
	"outreach-engine/internal/runner"
	"outreach-engine/pkg/config"
	"outreach-engine/pkg/gmail"
	"outreach-engine/pkg/notion"

	"github.com/gin-gonic/gin"
)

// gmailFactory adapts the Gmail service to the sender and listener usecases.
type gmailFactory struct {
	svc *gmail.Service
}

func (f gmailFactory) Open(ctx context.Context, cred outbounddomain.SenderCredential) (*gmail.Mailbox, error) {
	return f.svc.Mailbox(ctx, cred.Secret)
}

type senderMailboxFactory struct{ gmailFactory }

func (f senderMailboxFactory) Open(ctx context.Context, cred outbounddomain.SenderCredential) (outboundUsecase.Mailbox, error) {
	return f.gmailFactory.Open(ctx, cred)
}

type readerFactory struct{ gmailFactory }

func (f readerFactory) Open(ctx context.Context, cred outbounddomain.SenderCredential) (inboundUsecase.MailboxReader, error) {
	return f.gmailFactory.Open(ctx, cred)
}

// groupCredentials resolves a mailbox address by trying the sender accounts
// database of each group polling it, in configuration order.
type groupCredentials struct {
	outreach *config.Outreach
	repos    map[string]outboundRepo.CredentialRepository
}

func (g *groupCredentials) Resolve(ctx context.Context, mailbox string) (*outbounddomain.SenderCredential, error) {
	var lastErr error
	for _, grp := range g.outreach.GroupsForMailbox(mailbox) {
		cred, err := g.repos[grp.SenderAccountsDB].FindByEmail(ctx, mailbox)
		if err == nil {
			return cred, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no group polls mailbox %s", mailbox)
	}
	return nil, lastErr
}

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	notion.DefaultNaiveOffset = cfg.NaiveDateOffset

	outreach, err := config.LoadOutreach(cfg.OutreachConfigPath)
	if err != nil {
		log.Fatal("Failed to load outreach config: ", err)
	}

	var notionOpts []notion.Option
	if cfg.NotionBaseURL != "" {
		notionOpts = append(notionOpts, notion.WithBaseURL(cfg.NotionBaseURL))
	}
	notionClient := notion.NewClient(cfg.NotionAPIKey, notionOpts...)

	gmailService := gmail.NewService(cfg.GmailClientID, cfg.GmailClientSecret)
	factory := gmailFactory{svc: gmailService}

	// Shared throttle ledger: per-sender limits hold across groups.
	ledger := outboundUsecase.NewLedger(
		cfg.Throttle.MinInterval, cfg.Throttle.MaxInterval,
		cfg.Throttle.MaxPerHour, cfg.Throttle.MaxPerDay,
	)

	notifier := alert.NewNotifier(alert.Config{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		To:   cfg.AlertTo,
	})

	manager := runner.NewManager()
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	register := func(name string, cycle runner.CycleFunc) {
		r := runner.New(name, func(ctx context.Context) time.Duration {
			sleep := cycle(ctx)
			notifier.RecordSuccess(name)
			return sleep
		})
		r.OnFailure(notifier.RecordFailure)
		manager.Register(r)
	}

	// One scheduler loop per group; credential repositories are shared by
	// sender accounts database.
	credRepos := make(map[string]outboundRepo.CredentialRepository)
	for _, group := range outreach.Groups {
		if _, ok := credRepos[group.SenderAccountsDB]; !ok {
			credRepos[group.SenderAccountsDB] = outboundRepo.NewCredentialRepository(notionClient, group.SenderAccountsDB)
		}
		records := outboundRepo.NewRecordRepository(notionClient, group.RecordsDB, cfg.RecipientProperty)
		sender := outboundUsecase.NewSenderUsecase(
			records,
			credRepos[group.SenderAccountsDB],
			senderMailboxFactory{factory},
			ledger,
			outreach.BatchSize,
			outreach.InSendWindow,
		)
		register("queue-sender-"+group.Name, sender.RunCycle)
	}

	// One listener loop over all mailboxes.
	messageRepo := inboundRepo.NewMessageRepository(notionClient)
	recordLinkRepo := inboundRepo.NewRecordLinkRepository(notionClient)
	router := inboundUsecase.NewThreadRouter(outreach, recordLinkRepo)
	pipeline := inboundUsecase.NewPipelineUsecase(
		outreach,
		&groupCredentials{outreach: outreach, repos: credRepos},
		readerFactory{factory},
		router,
		messageRepo,
		recordLinkRepo,
	)
	register("inbound-listener", pipeline.RunCycle)

	manager.StartAll(baseCtx)

	// Control plane
	engine := gin.Default()
	api.SetupRoutes(engine, baseCtx, manager)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: engine}
	go func() {
		log.Printf("[API] Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("API server failed: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
	manager.StopAll()
}
