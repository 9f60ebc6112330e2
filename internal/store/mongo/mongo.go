// Package mongo implements store.Store on MongoDB. Contests are single
// documents with participants embedded, so enrollment and submissions are
// conditional updates on one document.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection     = "users"
	creatorsCollection  = "creators"
	contestsCollection  = "contests"
	checkoutsCollection = "checkouts"
)

// Store is a MongoDB-backed store.Store
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	users     *mongo.Collection
	creators  *mongo.Collection
	contests  *mongo.Collection
	checkouts *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Connect dials uri, verifies the connection and ensures indexes
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := New(client, database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	log.Info().Str("database", database).Msg("MongoDB connection established")
	return s, nil
}

// New wraps a connected client
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:    client,
		db:        db,
		users:     db.Collection(usersCollection),
		creators:  db.Collection(creatorsCollection),
		contests:  db.Collection(contestsCollection),
		checkouts: db.Collection(checkoutsCollection),
	}
}

// EnsureIndexes creates the indexes the conditional writes rely on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.creators.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("one_pending_per_email").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(models.CreatorRequestPending)}),
		},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create creator indexes: %w", err)
	}

	_, err = s.contests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "creatorEmail", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "deadline", Value: 1}}},
		{Keys: bson.D{{Key: "participants.participantEmail", Value: 1}}},
		{Keys: bson.D{{Key: "winner", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create contest indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database. Used by tests against throwaway databases.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func observe(op string, start time.Time) {
	monitoring.RecordStoreOperation("mongo", op, time.Since(start))
}

// --- users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	defer observe("create_user", time.Now())
	if _, err := s.users.InsertOne(ctx, toUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, email string) (*models.User, error) {
	defer observe("get_user", time.Now())
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.model(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	defer observe("list_users", time.Now())
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	out := make([]models.User, len(docs))
	for i := range docs {
		out[i] = *docs[i].model()
	}
	return out, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	defer observe("update_user_role", time.Now())
	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": email},
		bson.M{"$set": bson.M{"role": string(role), "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	return doc.model(), nil
}

// --- creator requests

func (s *Store) CreateCreatorRequest(ctx context.Context, r *models.CreatorRequest) error {
	defer observe("create_creator_request", time.Now())
	if _, err := s.creators.InsertOne(ctx, toRequestDoc(r)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create creator request: %w", err)
	}
	return nil
}

func (s *Store) GetCreatorRequest(ctx context.Context, id string) (*models.CreatorRequest, error) {
	defer observe("get_creator_request", time.Now())
	return s.getCreatorRequest(ctx, id)
}

func (s *Store) getCreatorRequest(ctx context.Context, id string) (*models.CreatorRequest, error) {
	var doc requestDoc
	if err := s.creators.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get creator request: %w", err)
	}
	return doc.model(), nil
}

func (s *Store) ListCreatorRequests(ctx context.Context) ([]models.CreatorRequest, error) {
	defer observe("list_creator_requests", time.Now())
	cur, err := s.creators.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list creator requests: %w", err)
	}
	var docs []requestDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode creator requests: %w", err)
	}
	out := make([]models.CreatorRequest, len(docs))
	for i := range docs {
		out[i] = *docs[i].model()
	}
	return out, nil
}

func (s *Store) HasApprovedCreatorRequest(ctx context.Context, email string) (bool, error) {
	defer observe("has_approved_creator_request", time.Now())
	n, err := s.creators.CountDocuments(ctx,
		bson.M{"email": email, "status": string(models.CreatorRequestApproved)},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check creator requests: %w", err)
	}
	return n > 0, nil
}

// DecideCreatorRequest runs the status change and the role promotion in one
// multi-document transaction, which requires a replica set deployment.
func (s *Store) DecideCreatorRequest(ctx context.Context, id string, decision models.CreatorRequestStatus, decidedAt time.Time) (*models.CreatorRequest, error) {
	defer observe("decide_creator_request", time.Now())

	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	result, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var doc requestDoc
		err := s.creators.FindOneAndUpdate(sc,
			bson.M{"_id": id, "status": string(models.CreatorRequestPending)},
			bson.M{"$set": bson.M{"status": string(decision), "decidedAt": decidedAt}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				if _, getErr := s.getCreatorRequest(sc, id); getErr != nil {
					return nil, getErr
				}
				return nil, store.ErrConflict
			}
			return nil, fmt.Errorf("failed to update creator request: %w", err)
		}

		if decision == models.CreatorRequestApproved {
			res, err := s.users.UpdateOne(sc,
				bson.M{"_id": doc.Email},
				bson.M{"$set": bson.M{"role": string(models.RoleCreator), "updatedAt": decidedAt}},
			)
			if err != nil {
				return nil, fmt.Errorf("failed to promote user: %w", err)
			}
			if res.MatchedCount == 0 {
				return nil, store.ErrNotFound
			}
		}
		return doc.model(), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.CreatorRequest), nil
}

// --- contests

func (s *Store) CreateContest(ctx context.Context, c *models.Contest) error {
	defer observe("create_contest", time.Now())
	doc, err := toContestDoc(c)
	if err != nil {
		return err
	}
	if _, err := s.contests.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create contest: %w", err)
	}
	return nil
}

func (s *Store) getContest(ctx context.Context, id string) (*models.Contest, error) {
	var doc contestDoc
	if err := s.contests.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}
	return doc.model()
}

func (s *Store) GetContest(ctx context.Context, id string) (*models.Contest, error) {
	defer observe("get_contest", time.Now())
	return s.getContest(ctx, id)
}

func contestFilter(f models.ContestFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.CreatorEmail != "" {
		filter["creatorEmail"] = f.CreatorEmail
	}
	if f.ParticipantEmail != "" {
		filter["participants.participantEmail"] = f.ParticipantEmail
	}
	switch {
	case f.WinnerEmail != "":
		filter["winner"] = f.WinnerEmail
	case f.WithoutWinner:
		filter["winner"] = nil
	}
	return filter
}

func (s *Store) ListContests(ctx context.Context, f models.ContestFilter) ([]models.Contest, error) {
	defer observe("list_contests", time.Now())

	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	if f.OrderByDeadline {
		sort = bson.D{{Key: "deadline", Value: 1}}
	}

	cur, err := s.contests.Find(ctx, contestFilter(f), options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	var docs []contestDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode contests: %w", err)
	}

	out := make([]models.Contest, 0, len(docs))
	for i := range docs {
		c, err := docs[i].model()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *Store) UpdateContest(ctx context.Context, id string, patch models.ContestPatch) (*models.Contest, error) {
	defer observe("update_contest", time.Now())

	set, err := patchDoc(patch)
	if err != nil {
		return nil, err
	}
	set["updatedAt"] = time.Now().UTC()

	return s.findAndUpdateContest(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

func (s *Store) findAndUpdateContest(ctx context.Context, filter, update bson.M) (*models.Contest, error) {
	var doc contestDoc
	err := s.contests.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update contest: %w", err)
	}
	return doc.model()
}

func (s *Store) UpdateContestStatus(ctx context.Context, id string, from, to models.ContestStatus) (*models.Contest, error) {
	defer observe("update_contest_status", time.Now())
	c, err := s.findAndUpdateContest(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": time.Now().UTC()}},
	)
	if errors.Is(err, store.ErrNotFound) {
		if _, getErr := s.getContest(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrConflict
	}
	return c, err
}

func (s *Store) DeleteContest(ctx context.Context, id string) error {
	defer observe("delete_contest", time.Now())
	res, err := s.contests.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete contest: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) contestExists(ctx context.Context, id string) (bool, error) {
	n, err := s.contests.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check contest: %w", err)
	}
	return n > 0, nil
}

// AppendParticipant pushes p only into a contest that does not already list
// the email. The filter and the push are one document update, so concurrent
// confirmations of the same payment cannot both match.
func (s *Store) AppendParticipant(ctx context.Context, contestID string, p models.Participant) (bool, error) {
	defer observe("append_participant", time.Now())

	res, err := s.contests.UpdateOne(ctx,
		bson.M{"_id": contestID, "participants.participantEmail": bson.M{"$ne": p.Email}},
		bson.M{
			"$push": bson.M{"participants": toParticipantDoc(p)},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to append participant: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	exists, err := s.contestExists(ctx, contestID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (s *Store) AppendSubmission(ctx context.Context, contestID, email string, sub models.Submission) error {
	defer observe("append_submission", time.Now())

	res, err := s.contests.UpdateOne(ctx,
		bson.M{"_id": contestID, "participants.participantEmail": email},
		bson.M{"$push": bson.M{"participants.$.taskInfo": sub}},
	)
	if err != nil {
		return fmt.Errorf("failed to append submission: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	exists, err := s.contestExists(ctx, contestID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrNotParticipant
}

func (s *Store) SetWinner(ctx context.Context, contestID, email string) (*models.Contest, error) {
	defer observe("set_winner", time.Now())

	c, err := s.findAndUpdateContest(ctx,
		bson.M{"_id": contestID, "winner": nil, "participants.participantEmail": email},
		bson.M{"$set": bson.M{"winner": email, "updatedAt": time.Now().UTC()}},
	)
	if !errors.Is(err, store.ErrNotFound) {
		return c, err
	}

	current, err := s.getContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if current.Winner != nil {
		return nil, store.ErrConflict
	}
	return nil, store.ErrNotParticipant
}

// --- checkouts

func (s *Store) CreateCheckout(ctx context.Context, r *models.CheckoutRecord) error {
	defer observe("create_checkout", time.Now())
	if _, err := s.checkouts.InsertOne(ctx, toCheckoutDoc(r)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create checkout: %w", err)
	}
	return nil
}

func (s *Store) GetCheckout(ctx context.Context, sessionID string) (*models.CheckoutRecord, error) {
	defer observe("get_checkout", time.Now())
	var doc checkoutDoc
	if err := s.checkouts.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get checkout: %w", err)
	}
	return doc.model(), nil
}

func (s *Store) MarkCheckoutCompleted(ctx context.Context, sessionID string, at time.Time) error {
	defer observe("mark_checkout_completed", time.Now())

	res, err := s.checkouts.UpdateOne(ctx,
		bson.M{"_id": sessionID, "status": string(models.CheckoutStatusOpen)},
		bson.M{"$set": bson.M{"status": string(models.CheckoutStatusCompleted), "completedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to complete checkout: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.checkouts.CountDocuments(ctx, bson.M{"_id": sessionID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check checkout: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
