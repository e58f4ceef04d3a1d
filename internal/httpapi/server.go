package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fastmount/marketplace/pkg/marketplace"
)

// Run boots the HTTP API and blocks until ctx is cancelled or the server fails.
func Run(ctx context.Context, cfg Config, service *marketplace.Service, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	handler := &httpHandler{
		service: service,
		logger:  logger,
		cfg:     cfg,
	}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("marketplace api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	// Public QR-tracking endpoint, no auth.
	api.GET("/bookings/:id/status", handler.handleBookingStatus)

	authed := api.Group("")
	authed.Use(authRequired(cfg.JWTSigningKey, cfg.JWTIssuer))

	authed.POST("/bookings", requireRole(roleCustomer), handler.handleCreateBooking)
	authed.GET("/bookings/:id/proposals", handler.handleListProposals)
	authed.POST("/bookings/:id/proposals", handler.handleProposeSchedule)
	authed.POST("/proposals/:id/accept", handler.handleAcceptProposal)
	authed.POST("/proposals/:id/reject", handler.handleRejectProposal)

	installer := authed.Group("")
	installer.Use(requireRole(roleInstaller))
	installer.POST("/bootstrap", handler.handleBootstrap)
	installer.GET("/leads", handler.handleListLeads)
	installer.GET("/leads/:id/contact", handler.handleLeadContact)
	installer.POST("/leads/:id/purchase", handler.handlePurchaseLead)
	installer.GET("/wallet", handler.handleWallet)
	installer.POST("/wallet/topup", handler.handleTopUp)
	installer.GET("/voucher", handler.handleVoucher)
	installer.POST("/bookings/:id/start", handler.handleStartJob)
	installer.POST("/bookings/:id/complete", handler.handleCompleteJob)

	return router
}

type httpHandler struct {
	service *marketplace.Service
	logger  *zap.Logger
	cfg     Config
}

func (handler *httpHandler) handleBootstrap(ctx *gin.Context) {
	installerID, err := marketplace.NewInstallerID(partyID(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	voucher, err := marketplace.NewAmountCents(handler.cfg.VoucherCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.service.OnboardInstaller(ctx.Request.Context(), installerID, voucher); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithWallet(ctx, installerID)
}

func (handler *httpHandler) handleCreateBooking(ctx *gin.Context) {
	var request createBookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	price, err := marketplace.NewAmountCents(request.PriceCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	leadFee, err := marketplace.NewPositiveAmountCents(handler.cfg.LeadFeeCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bookingID, err := handler.service.CreateBooking(ctx.Request.Context(), marketplace.BookingInput{
		Contact: marketplace.CustomerContact{
			Name:    request.Name,
			Email:   request.Email,
			Phone:   request.Phone,
			Address: request.Address,
		},
		ServiceType:       request.ServiceType,
		TVSize:            request.TVSize,
		PriceCents:        price,
		PreferredDate:     request.PreferredDate,
		PreferredTimeSlot: request.PreferredTimeSlot,
		LeadFeeCents:      leadFee,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"booking_id": bookingID.String()})
}

func (handler *httpHandler) handleBookingStatus(ctx *gin.Context) {
	bookingID, err := marketplace.NewBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	status, err := handler.service.BookingStatus(ctx.Request.Context(), bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"booking_id": bookingID.String(),
		"status":     status.String(),
	})
}

func (handler *httpHandler) handleListLeads(ctx *gin.Context) {
	leads, err := handler.service.ListOpenLeads(ctx.Request.Context(), openLeadsLimit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]openLeadPayload, 0, len(leads))
	for _, lead := range leads {
		payload = append(payload, openLeadPayload{
			BookingID:         lead.BookingID.String(),
			FeeCents:          lead.FeeCents.Int64(),
			ServiceType:       lead.ServiceType,
			TVSize:            lead.TVSize,
			PreferredDate:     lead.PreferredDate,
			PreferredTimeSlot: lead.PreferredTimeSlot,
			CreatedUnixUTC:    lead.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"leads": payload})
}

func (handler *httpHandler) handleLeadContact(ctx *gin.Context) {
	installerID, err := marketplace.NewInstallerID(partyID(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bookingID, err := marketplace.NewBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	contact, err := handler.service.LeadContact(ctx.Request.Context(), installerID, bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"contact": contactPayload{
		Name:    contact.Name,
		Email:   contact.Email,
		Phone:   contact.Phone,
		Address: contact.Address,
	}})
}

func (handler *httpHandler) handlePurchaseLead(ctx *gin.Context) {
	installerID, err := marketplace.NewInstallerID(partyID(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bookingID, err := marketplace.NewBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	grant, err := handler.service.PurchaseLead(ctx.Request.Context(), installerID, bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":                true,
		"booking_id":             grant.BookingID.String(),
		"final_cost_cents":       grant.FinalCostCents.Int64(),
		"voucher_discount_cents": grant.VoucherDiscountCents.Int64(),
	})
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	installerID, err := marketplace.NewInstallerID(partyID(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithWallet(ctx, installerID)
}

func (handler *httpHandler) handleTopUp(ctx *gin.Context) {
	installerID, err := marketplace.NewInstallerID(partyID(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request topUpRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	amount, err := marketplace.NewPositiveAmountCents(request.AmountCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	idempotencyKey, err := marketplace.NewIdempotencyKey(request.IdempotencyKey)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	metadata, err := marketplace.NewMetadataJSON(request.Metadata)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.service.Credit(ctx.Request.Context(), installerID, amount, marketplace.EntryTopUp, idempotencyKey, metadata); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithWallet(ctx, installerID)
}

func (handler *httpHandler) handleVoucher(ctx *gin.Context) {
	installerID, err := marketplace.NewInstallerID(partyID(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	eligibility, err := handler.service.VoucherEligibility(ctx.Request.Context(), installerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"eligible":     eligibility.Eligible,
		"amount_cents": eligibility.AmountCents.Int64(),
	})
}

func (handler *httpHandler) handleProposeSchedule(ctx *gin.Context) {
	bookingID, err := marketplace.NewBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request proposeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	role, err := marketplace.ParseProposerRole(partyRole(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	// Installers always propose as themselves; customers address a specific
	// purchasing installer.
	rawInstaller := partyID(ctx)
	if role == marketplace.ProposerCustomer {
		rawInstaller = request.InstallerID
	}
	installerID, err := marketplace.NewInstallerID(rawInstaller)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	date, err := marketplace.NewScheduleDate(request.Date)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	proposalID, err := handler.service.ProposeSchedule(ctx.Request.Context(), marketplace.ProposalInput{
		BookingID:    bookingID,
		ProposerRole: role,
		InstallerID:  installerID,
		Date:         date,
		TimeSlot:     request.TimeSlot,
		Message:      request.Message,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"proposal_id": proposalID.String()})
}

func (handler *httpHandler) handleListProposals(ctx *gin.Context) {
	bookingID, err := marketplace.NewBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	proposals, err := handler.service.ListProposals(ctx.Request.Context(), bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]proposalPayload, 0, len(proposals))
	for _, proposal := range proposals {
		payload = append(payload, proposalPayload{
			ProposalID:     proposal.ProposalID.String(),
			BookingID:      proposal.BookingID.String(),
			ProposerRole:   proposal.ProposerRole.String(),
			InstallerID:    proposal.InstallerID.String(),
			Date:           proposal.Date.String(),
			TimeSlot:       proposal.TimeSlot,
			Message:        proposal.Message,
			Status:         proposal.Status.String(),
			Reschedule:     proposal.Reschedule,
			CreatedUnixUTC: proposal.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"proposals": payload})
}

func (handler *httpHandler) handleAcceptProposal(ctx *gin.Context) {
	handler.decideProposal(ctx, handler.service.AcceptProposal)
}

func (handler *httpHandler) handleRejectProposal(ctx *gin.Context) {
	handler.decideProposal(ctx, handler.service.RejectProposal)
}

func (handler *httpHandler) decideProposal(ctx *gin.Context, decide func(context.Context, marketplace.ProposalID, marketplace.ProposerRole, marketplace.InstallerID) error) {
	proposalID, err := marketplace.NewProposalID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	role, err := marketplace.ParseProposerRole(partyRole(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var installerID marketplace.InstallerID
	if role == marketplace.ProposerInstaller {
		installerID, err = marketplace.NewInstallerID(partyID(ctx))
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
	}
	if err := decide(ctx.Request.Context(), proposalID, role, installerID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (handler *httpHandler) handleStartJob(ctx *gin.Context) {
	handler.advanceJob(ctx, handler.service.StartJob)
}

func (handler *httpHandler) handleCompleteJob(ctx *gin.Context) {
	handler.advanceJob(ctx, handler.service.CompleteJob)
}

func (handler *httpHandler) advanceJob(ctx *gin.Context, advance func(context.Context, marketplace.InstallerID, marketplace.BookingID) error) {
	installerID, err := marketplace.NewInstallerID(partyID(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bookingID, err := marketplace.NewBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := advance(ctx.Request.Context(), installerID, bookingID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	status, err := handler.service.BookingStatus(ctx.Request.Context(), bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "status": status.String()})
}

func (handler *httpHandler) respondWithWallet(ctx *gin.Context, installerID marketplace.InstallerID) {
	requestCtx := ctx.Request.Context()
	balance, err := handler.service.WalletBalance(requestCtx, installerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	entries, err := handler.service.WalletEntries(requestCtx, installerID, 0, handler.cfg.WalletHistoryLimit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, entryPayload{
			EntryID:        entry.EntryID,
			Type:           entry.Type.String(),
			AmountCents:    entry.AmountCents,
			IdempotencyKey: entry.IdempotencyKey,
			CreatedUnixUTC: entry.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": walletResponse{
		BalanceCents: balance.Int64(),
		Entries:      payload,
	}})
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code := domainStatus(err)
	if status == http.StatusInternalServerError {
		handler.logger.Error("storage failure", zap.Error(err))
		ctx.JSON(status, errorResponse("storage_error", "operation failed"))
		return
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}
