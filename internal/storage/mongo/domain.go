package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"clientflow/internal/storage"
)

func (s *Store) GetProposal(ctx context.Context, id int64) (*storage.Proposal, error) {
	var p storage.Proposal
	if err := s.findByID(ctx, collProposals, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) LinkProposalProject(ctx context.Context, proposalID, projectID int64) error {
	return s.setFields(ctx, collProposals, proposalID, bson.M{"project_id": projectID})
}

func (s *Store) CreateProject(ctx context.Context, p *storage.Project) (int64, error) {
	id, err := s.nextID(ctx, collProjects)
	if err != nil {
		return 0, err
	}
	p.ID = id
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if _, err := s.db.Collection(collProjects).InsertOne(ctx, p); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetProject(ctx context.Context, id int64) (*storage.Project, error) {
	var p storage.Project
	if err := s.findByID(ctx, collProjects, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetProjectStatus(ctx context.Context, id int64, status string) error {
	return s.setFields(ctx, collProjects, id, bson.M{"status": status})
}

func (s *Store) UpdateProject(ctx context.Context, id int64, fields map[string]any) error {
	return s.setFields(ctx, collProjects, id, bson.M(fields))
}

func (s *Store) GetContract(ctx context.Context, id int64) (*storage.Contract, error) {
	var c storage.Contract
	if err := s.findByID(ctx, collContracts, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateMilestones(ctx context.Context, ms []*storage.Milestone) error {
	if len(ms) == 0 {
		return nil
	}
	docs := make([]any, len(ms))
	for i, m := range ms {
		if m.ID == 0 {
			id, err := s.nextID(ctx, collMilestones)
			if err != nil {
				return err
			}
			m.ID = id
		}
		docs[i] = m
	}
	_, err := s.db.Collection(collMilestones).InsertMany(ctx, docs)
	return err
}

func (s *Store) GetMilestone(ctx context.Context, id int64) (*storage.Milestone, error) {
	var m storage.Milestone
	if err := s.findByID(ctx, collMilestones, id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListDeliverablesByMilestone(ctx context.Context, milestoneID int64) ([]*storage.Deliverable, error) {
	cur, err := s.db.Collection(collDeliverables).Find(ctx, bson.M{"milestone_id": milestoneID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ds []*storage.Deliverable
	if err := cur.All(ctx, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *Store) GetDeliverable(ctx context.Context, id int64) (*storage.Deliverable, error) {
	var d storage.Deliverable
	if err := s.findByID(ctx, collDeliverables, id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListAwaitingApprovalDeliverables(ctx context.Context) ([]*storage.Deliverable, error) {
	cur, err := s.db.Collection(collDeliverables).Find(ctx, bson.M{"status": "awaiting_approval"})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ds []*storage.Deliverable
	if err := cur.All(ctx, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *Store) SetApprovalReminderSent(ctx context.Context, deliverableID int64, at time.Time) error {
	return s.setFields(ctx, collDeliverables, deliverableID, bson.M{"last_approval_reminder_at": at})
}

func (s *Store) GetClient(ctx context.Context, id int64) (*storage.Client, error) {
	var c storage.Client
	if err := s.findByID(ctx, collClients, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkWelcomeSequenceStarted sets the started-at marker only when it is not
// already set. The matched count tells us whether this call won the guard.
func (s *Store) MarkWelcomeSequenceStarted(ctx context.Context, clientID int64, at time.Time) (bool, error) {
	res, err := s.db.Collection(collClients).UpdateOne(ctx,
		bson.M{"_id": clientID, "welcome_sequence_started_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"welcome_sequence_started_at": at}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		// Either the client does not exist or the sequence already started.
		count, err := s.db.Collection(collClients).CountDocuments(ctx, bson.M{"_id": clientID})
		if err != nil {
			return false, err
		}
		if count == 0 {
			return false, storage.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) MilestoneInvoiceExists(ctx context.Context, milestoneID int64) (bool, error) {
	count, err := s.db.Collection(collInvoices).CountDocuments(ctx,
		bson.M{"milestone_id": milestoneID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) findByID(ctx context.Context, coll string, id int64, out any) error {
	err := s.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	return err
}

func (s *Store) setFields(ctx context.Context, coll string, id int64, fields bson.M) error {
	res, err := s.db.Collection(coll).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
