package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/repository"
)

// MemoryStore backs the service tests. It reproduces the database's
// conditional semantics (balance guard, slot guard, status compare-and-set,
// unique participant) under one mutex, so the concurrency properties hold
// the same way they do against postgres. The per-entity repositories are
// views over the shared state; Join, Complete and Expire mutate wallets,
// draws and the ledger inside a single critical section, mirroring the
// store transactions.
type MemoryStore struct {
	mu sync.Mutex

	nextUserID     uint
	nextTemplateID uint
	users          map[uint]domain.User
	usersByEmail   map[string]uint
	wallets        map[walletKey]int64
	transactions   []domain.Transaction
	templates      map[uint]domain.DrawTemplate
	draws          map[string]*memDraw
}

type walletKey struct {
	userID uint
	mode   domain.WalletMode
}

type memDraw struct {
	draw         domain.Draw
	participants []domain.Participant
	contract     []byte
}

func (d *memDraw) snapshot() domain.Draw {
	draw := d.draw
	draw.Participants = append([]domain.Participant(nil), d.participants...)
	return draw
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uint]domain.User),
		usersByEmail: make(map[string]uint),
		wallets:      make(map[walletKey]int64),
		templates:    make(map[uint]domain.DrawTemplate),
		draws:        make(map[string]*memDraw),
	}
}

func (s *MemoryStore) Users() *MemoryUserRepo         { return &MemoryUserRepo{s} }
func (s *MemoryStore) Wallets() *MemoryWalletRepo     { return &MemoryWalletRepo{s} }
func (s *MemoryStore) Templates() *MemoryTemplateRepo { return &MemoryTemplateRepo{s} }
func (s *MemoryStore) Draws() *MemoryDrawRepo         { return &MemoryDrawRepo{s} }

// SetBalance force-sets a wallet for test setup.
func (s *MemoryStore) SetBalance(userID uint, mode domain.WalletMode, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallets[walletKey{userID, mode}] = balance
}

// AgeDraw shifts a draw's timestamps into the past, for staleness tests.
func (s *MemoryStore) AgeDraw(drawID string, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.draws[drawID]
	if !ok {
		return
	}
	d.draw.CreatedAt = d.draw.CreatedAt.Add(-by)
	d.draw.UpdatedAt = d.draw.UpdatedAt.Add(-by)
	if d.draw.CountdownEndsAt != nil {
		ends := d.draw.CountdownEndsAt.Add(-by)
		d.draw.CountdownEndsAt = &ends
	}
}

// CountTransactions reports how many ledger rows match (type, reference),
// for the exactly-one-payout assertions.
func (s *MemoryStore) CountTransactions(txType domain.TransactionType, referenceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.transactions {
		if t.Type == txType && t.ReferenceID == referenceID {
			count++
		}
	}

	return count
}

func (s *MemoryStore) creditLocked(userID uint, mode domain.WalletMode, amount int64) (int64, error) {
	key := walletKey{userID, mode}
	if _, ok := s.wallets[key]; !ok {
		return 0, repository.ErrWalletNotFound
	}
	s.wallets[key] += amount

	return s.wallets[key], nil
}

func (s *MemoryStore) debitLocked(userID uint, mode domain.WalletMode, amount int64) (int64, error) {
	key := walletKey{userID, mode}
	balance, ok := s.wallets[key]
	if !ok || balance < amount {
		return 0, repository.ErrInsufficientFunds
	}
	s.wallets[key] = balance - amount

	return s.wallets[key], nil
}

func (s *MemoryStore) recordLocked(transaction domain.Transaction) domain.Transaction {
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = time.Now()
	}
	s.transactions = append(s.transactions, transaction)

	return transaction
}

// MemoryUserRepo satisfies AuthUserRepository and UserRepository.
type MemoryUserRepo struct {
	s *MemoryStore
}

func (r *MemoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.usersByEmail[user.Email]; ok {
		return domain.User{}, repository.ErrUserEmailExists
	}

	r.s.nextUserID++
	user.ID = r.s.nextUserID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = user
	r.s.usersByEmail[user.Email] = user.ID

	return user, nil
}

func (r *MemoryUserRepo) FindByID(ctx context.Context, id uint) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}

	return user, nil
}

func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.usersByEmail[email]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}

	return r.s.users[id], nil
}

func (r *MemoryUserRepo) ListByRole(ctx context.Context, role string) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.User
	for i := uint(1); i <= r.s.nextUserID; i++ {
		if u, ok := r.s.users[i]; ok && u.Role == role {
			out = append(out, u)
		}
	}

	return out, nil
}

func (r *MemoryUserRepo) FindOrCreateByEmail(ctx context.Context, user domain.User) (domain.User, error) {
	if existing, err := r.FindByEmail(ctx, user.Email); err == nil {
		return existing, nil
	}

	return r.Create(ctx, user)
}

// MemoryWalletRepo satisfies WalletRepository.
type MemoryWalletRepo struct {
	s *MemoryStore
}

func (r *MemoryWalletRepo) Ensure(ctx context.Context, userID uint, mode domain.WalletMode) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := walletKey{userID, mode}
	if _, ok := r.s.wallets[key]; !ok {
		r.s.wallets[key] = 0
	}

	return domain.Wallet{UserID: userID, Mode: mode, Balance: r.s.wallets[key]}, nil
}

func (r *MemoryWalletRepo) Get(ctx context.Context, userID uint, mode domain.WalletMode) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	balance, ok := r.s.wallets[walletKey{userID, mode}]
	if !ok {
		return domain.Wallet{}, repository.ErrWalletNotFound
	}

	return domain.Wallet{UserID: userID, Mode: mode, Balance: balance}, nil
}

func (r *MemoryWalletRepo) ListByUser(ctx context.Context, userID uint) ([]domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Wallet
	for _, mode := range domain.Modes {
		if balance, ok := r.s.wallets[walletKey{userID, mode}]; ok {
			out = append(out, domain.Wallet{UserID: userID, Mode: mode, Balance: balance})
		}
	}

	return out, nil
}

func (r *MemoryWalletRepo) Credit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.creditLocked(userID, mode, amount)
}

func (r *MemoryWalletRepo) Debit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.debitLocked(userID, mode, amount)
}

func (r *MemoryWalletRepo) RecordTransaction(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.recordLocked(transaction), nil
}

func (r *MemoryWalletRepo) ListTransactions(ctx context.Context, userID uint, mode domain.WalletMode, limit int) ([]domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Transaction
	for i := len(r.s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		t := r.s.transactions[i]
		if t.UserID == userID && t.Mode == mode {
			out = append(out, t)
		}
	}

	return out, nil
}

func (r *MemoryWalletRepo) SumTransactions(ctx context.Context, userID uint, mode domain.WalletMode) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var total int64
	for _, t := range r.s.transactions {
		if t.UserID == userID && t.Mode == mode {
			total += t.Amount
		}
	}

	return total, nil
}

// MemoryTemplateRepo satisfies TemplateRepository.
type MemoryTemplateRepo struct {
	s *MemoryStore
}

func (r *MemoryTemplateRepo) Create(ctx context.Context, template domain.DrawTemplate) (domain.DrawTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextTemplateID++
	template.ID = r.s.nextTemplateID
	template.CreatedAt = time.Now()
	template.UpdatedAt = template.CreatedAt
	r.s.templates[template.ID] = template

	return template, nil
}

func (r *MemoryTemplateRepo) GetByID(ctx context.Context, id uint) (domain.DrawTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	template, ok := r.s.templates[id]
	if !ok {
		return domain.DrawTemplate{}, repository.ErrTemplateNotFound
	}

	return template, nil
}

func (r *MemoryTemplateRepo) ListEnabled(ctx context.Context) ([]domain.DrawTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.DrawTemplate
	for i := uint(1); i <= r.s.nextTemplateID; i++ {
		if t, ok := r.s.templates[i]; ok && t.Enabled {
			out = append(out, t)
		}
	}

	return out, nil
}

func (r *MemoryTemplateRepo) ListAll(ctx context.Context) ([]domain.DrawTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.DrawTemplate
	for i := uint(1); i <= r.s.nextTemplateID; i++ {
		if t, ok := r.s.templates[i]; ok {
			out = append(out, t)
		}
	}

	return out, nil
}

func (r *MemoryTemplateRepo) UpdateFlags(ctx context.Context, id uint, enabled, requiresDeposit, autoFill bool) (domain.DrawTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	template, ok := r.s.templates[id]
	if !ok {
		return domain.DrawTemplate{}, repository.ErrTemplateNotFound
	}
	template.Enabled = enabled
	template.RequiresDeposit = requiresDeposit
	template.AutoFill = autoFill
	template.UpdatedAt = time.Now()
	r.s.templates[id] = template

	return template, nil
}

// MemoryDrawRepo satisfies DrawRepository and TemplateDrawRepository.
type MemoryDrawRepo struct {
	s *MemoryStore
}

func (r *MemoryDrawRepo) Create(ctx context.Context, draw domain.Draw) (domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if draw.ID == "" {
		draw.ID = uuid.NewString()
	}
	draw.CreatedAt = time.Now()
	draw.UpdatedAt = draw.CreatedAt
	r.s.draws[draw.ID] = &memDraw{draw: draw}

	return draw, nil
}

func (r *MemoryDrawRepo) GetByID(ctx context.Context, id string) (domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.draws[id]
	if !ok {
		return domain.Draw{}, repository.ErrDrawNotFound
	}

	return d.snapshot(), nil
}

func (r *MemoryDrawRepo) FindOpenByTemplate(ctx context.Context, templateID uint, mode domain.WalletMode) (domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, d := range r.s.draws {
		if d.draw.TemplateID == templateID && d.draw.Mode == mode && d.draw.Status == domain.DrawOpen {
			return d.snapshot(), nil
		}
	}

	return domain.Draw{}, repository.ErrDrawNotFound
}

func (r *MemoryDrawRepo) ListByStatus(ctx context.Context, status domain.DrawStatus, limit int) ([]domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Draw
	for _, d := range r.s.draws {
		if d.draw.Status == status && len(out) < limit {
			out = append(out, d.snapshot())
		}
	}

	return out, nil
}

func (r *MemoryDrawRepo) ListDueCountdown(ctx context.Context, now time.Time) ([]domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Draw
	for _, d := range r.s.draws {
		if d.draw.Status == domain.DrawCountdown &&
			d.draw.CountdownEndsAt != nil && !d.draw.CountdownEndsAt.After(now) {
			out = append(out, d.snapshot())
		}
	}

	return out, nil
}

func (r *MemoryDrawRepo) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Draw
	for _, d := range r.s.draws {
		if d.draw.Status == domain.DrawRunning && !d.draw.UpdatedAt.After(cutoff) {
			out = append(out, d.snapshot())
		}
	}

	return out, nil
}

func (r *MemoryDrawRepo) ListStaleOpen(ctx context.Context, cutoff time.Time) ([]domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Draw
	for _, d := range r.s.draws {
		if d.draw.Status == domain.DrawOpen && !d.draw.CreatedAt.After(cutoff) {
			out = append(out, d.snapshot())
		}
	}

	return out, nil
}

func (r *MemoryDrawRepo) Join(ctx context.Context, drawID string, userID uint, username string) (domain.Draw, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.draws[drawID]
	if !ok {
		return domain.Draw{}, false, repository.ErrDrawNotFound
	}
	if d.draw.Status != domain.DrawOpen {
		return domain.Draw{}, false, repository.ErrDrawNotOpen
	}
	if d.draw.FilledSlots >= d.draw.TotalSlots {
		return domain.Draw{}, false, repository.ErrDrawFull
	}
	for _, p := range d.participants {
		if p.UserID == userID {
			return domain.Draw{}, false, repository.ErrAlreadyJoined
		}
	}

	balance, err := r.s.debitLocked(userID, d.draw.Mode, d.draw.EntryCredits)
	if err != nil {
		return domain.Draw{}, false, err
	}

	d.participants = append(d.participants, domain.Participant{
		UserID:   userID,
		Username: username,
		Position: d.draw.FilledSlots,
	})
	d.draw.FilledSlots++
	d.draw.Pool += d.draw.EntryCredits
	if d.draw.FilledSlots >= d.draw.TotalSlots {
		d.draw.Status = domain.DrawFull
	}
	d.draw.UpdatedAt = time.Now()

	r.s.recordLocked(domain.Transaction{
		UserID:       userID,
		Mode:         d.draw.Mode,
		Type:         domain.TransactionEntry,
		Amount:       -d.draw.EntryCredits,
		BalanceAfter: balance,
		ReferenceID:  drawID,
	})

	return d.snapshot(), d.draw.Status == domain.DrawFull, nil
}

func (r *MemoryDrawRepo) StartCountdown(ctx context.Context, drawID, serverSeed, publicSeed, commitHash string, endsAt time.Time) (domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.draws[drawID]
	if !ok {
		return domain.Draw{}, repository.ErrDrawNotFound
	}
	if !d.draw.Status.CanTransitionTo(domain.DrawCountdown) || d.draw.CommitHash != "" {
		return domain.Draw{}, repository.ErrCountdownAlreadySet
	}

	d.draw.Status = domain.DrawCountdown
	d.draw.ServerSeed = serverSeed
	d.draw.PublicSeed = publicSeed
	d.draw.CommitHash = commitHash
	ends := endsAt
	d.draw.CountdownEndsAt = &ends
	d.draw.UpdatedAt = time.Now()

	return d.snapshot(), nil
}

func (r *MemoryDrawRepo) MarkRunning(ctx context.Context, drawID string, allowedFrom []domain.DrawStatus) (domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.draws[drawID]
	if !ok {
		return domain.Draw{}, repository.ErrDrawNotFound
	}

	for _, status := range allowedFrom {
		if d.draw.Status == status && status.CanTransitionTo(domain.DrawRunning) {
			d.draw.Status = domain.DrawRunning
			d.draw.UpdatedAt = time.Now()
			return d.snapshot(), nil
		}
	}

	if d.draw.Status == domain.DrawRunning || d.draw.Status.IsTerminal() {
		return domain.Draw{}, repository.ErrAlreadyFinalized
	}

	return domain.Draw{}, repository.ErrDrawNotReady
}

func (r *MemoryDrawRepo) AttachSeeds(ctx context.Context, drawID, serverSeed, publicSeed, commitHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.draws[drawID]
	if !ok {
		return repository.ErrDrawNotFound
	}
	if d.draw.Status != domain.DrawRunning || d.draw.CommitHash != "" {
		return repository.ErrCountdownAlreadySet
	}

	d.draw.ServerSeed = serverSeed
	d.draw.PublicSeed = publicSeed
	d.draw.CommitHash = commitHash
	d.draw.UpdatedAt = time.Now()

	return nil
}

func (r *MemoryDrawRepo) Complete(ctx context.Context, drawID string, winner domain.Participant, fee, prize int64, contract []byte, houseUserID uint) (domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.draws[drawID]
	if !ok {
		return domain.Draw{}, repository.ErrDrawNotFound
	}
	if !d.draw.Status.CanTransitionTo(domain.DrawCompleted) {
		return domain.Draw{}, repository.ErrAlreadyFinalized
	}

	now := time.Now()
	d.draw.Status = domain.DrawCompleted
	d.draw.WinnerID = winner.UserID
	d.draw.WinnerUsername = winner.Username
	d.draw.Fee = fee
	d.draw.Prize = prize
	d.contract = contract
	d.draw.CompletedAt = &now
	d.draw.UpdatedAt = now

	winnerBalance, err := r.s.creditLocked(winner.UserID, d.draw.Mode, prize)
	if err != nil {
		return domain.Draw{}, err
	}
	r.s.recordLocked(domain.Transaction{
		UserID:       winner.UserID,
		Mode:         d.draw.Mode,
		Type:         domain.TransactionWin,
		Amount:       prize,
		BalanceAfter: winnerBalance,
		ReferenceID:  drawID,
	})

	houseBalance, err := r.s.creditLocked(houseUserID, d.draw.Mode, fee)
	if err != nil {
		return domain.Draw{}, err
	}
	r.s.recordLocked(domain.Transaction{
		UserID:       houseUserID,
		Mode:         d.draw.Mode,
		Type:         domain.TransactionFee,
		Amount:       fee,
		BalanceAfter: houseBalance,
		ReferenceID:  drawID,
	})

	return d.snapshot(), nil
}

func (r *MemoryDrawRepo) Expire(ctx context.Context, drawID string) (domain.Draw, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.draws[drawID]
	if !ok {
		return domain.Draw{}, repository.ErrDrawNotFound
	}
	if !d.draw.Status.CanTransitionTo(domain.DrawExpired) {
		return domain.Draw{}, repository.ErrDrawNotExpirable
	}

	d.draw.Status = domain.DrawExpired
	d.draw.UpdatedAt = time.Now()

	for _, p := range d.participants {
		balance, err := r.s.creditLocked(p.UserID, d.draw.Mode, d.draw.EntryCredits)
		if err != nil {
			return domain.Draw{}, err
		}
		r.s.recordLocked(domain.Transaction{
			UserID:       p.UserID,
			Mode:         d.draw.Mode,
			Type:         domain.TransactionRefund,
			Amount:       d.draw.EntryCredits,
			BalanceAfter: balance,
			ReferenceID:  drawID,
		})
	}

	return d.snapshot(), nil
}
