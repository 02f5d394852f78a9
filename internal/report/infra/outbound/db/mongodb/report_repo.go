package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	reportDomain "github.com/davicafu/reportlab/internal/report/domain"
	sharedDomain "github.com/davicafu/reportlab/internal/shared/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ReportRepoMongoDB implementa la interfaz ReportRepository para MongoDB.
type ReportRepoMongoDB struct {
	client      *mongo.Client
	dbName      string
	reportsColl *mongo.Collection
	outboxColl  *mongo.Collection
}

// NewReportRepoMongoDB es el constructor del repositorio.
func NewReportRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*ReportRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	db := client.Database(dbName)
	return &ReportRepoMongoDB{
		client:      client,
		dbName:      dbName,
		reportsColl: db.Collection("solicitacoes_relatorio"),
		outboxColl:  db.Collection("outbox"),
	}, nil
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoReport struct {
	ID                uuid.UUID  `bson:"_id"`
	Nome              string     `bson:"nome"`
	Status            string     `bson:"status"`
	DataCriacao       time.Time  `bson:"dataCriacao"`
	DataProcessamento *time.Time `bson:"dataProcessamento,omitempty"`
	Observacoes       string     `bson:"observacoes,omitempty"`
	Tentativas        int        `bson:"tentativas"`
	Version           int64      `bson:"version"`
}

type mongoOutboxEvent struct {
	ID            uuid.UUID   `bson:"_id"`
	AggregateType string      `bson:"aggregateType"`
	AggregateID   string      `bson:"aggregateId"`
	EventType     string      `bson:"eventType"`
	Payload       interface{} `bson:"payload"`
	CreatedAt     time.Time   `bson:"createdAt"`
	Processed     bool        `bson:"processed"`
}

// --- CRUD Transaccional ---

func (r *ReportRepoMongoDB) Create(ctx context.Context, rep *reportDomain.ReportRequest, evt sharedDomain.OutboxEvent) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	// La transacción asegura que ambas inserciones (solicitud y evento) sean atómicas.
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		mr := toMongoReport(rep)
		if _, err := r.reportsColl.InsertOne(sessCtx, mr); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, reportDomain.ErrReportAlreadyExists
			}
			return nil, err
		}
		mo := toMongoOutboxEvent(evt)
		if _, err := r.outboxColl.InsertOne(sessCtx, mo); err != nil {
			return nil, err
		}
		return nil, nil
	})

	return err
}

func (r *ReportRepoMongoDB) Update(ctx context.Context, rep *reportDomain.ReportRequest, evt sharedDomain.OutboxEvent) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		mr := toMongoReport(rep)
		mr.Version = rep.Version + 1

		// CAS sobre (id, version) para la concurrencia optimista.
		filter := bson.M{"_id": mr.ID, "version": rep.Version}
		update := bson.M{"$set": mr}

		res, err := r.reportsColl.UpdateOne(sessCtx, filter, update)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			count, cErr := r.reportsColl.CountDocuments(sessCtx, bson.M{"_id": mr.ID})
			if cErr != nil {
				return nil, cErr
			}
			if count > 0 {
				return nil, reportDomain.ErrVersionConflict
			}
			return nil, reportDomain.ErrReportNotFound
		}

		mo := toMongoOutboxEvent(evt)
		if _, err := r.outboxColl.InsertOne(sessCtx, mo); err != nil {
			return nil, err
		}

		return nil, nil
	})
	if err != nil {
		return err
	}

	rep.Version++
	return nil
}

// --- Lectura ---

func (r *ReportRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*reportDomain.ReportRequest, error) {
	var mr mongoReport
	err := r.reportsColl.FindOne(ctx, bson.M{"_id": id}).Decode(&mr)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reportDomain.ErrReportNotFound
		}
		return nil, err
	}
	return fromMongoReport(&mr), nil
}

func (r *ReportRepoMongoDB) List(ctx context.Context) ([]*reportDomain.ReportRequest, error) {
	return r.find(ctx, bson.M{})
}

func (r *ReportRepoMongoDB) ListByStatus(ctx context.Context, status reportDomain.ReportStatus) ([]*reportDomain.ReportRequest, error) {
	return r.find(ctx, bson.M{"status": string(status)})
}

func (r *ReportRepoMongoDB) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	count, err := r.reportsColl.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ReportRepoMongoDB) find(ctx context.Context, filter bson.M) ([]*reportDomain.ReportRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dataCriacao", Value: -1}})

	cursor, err := r.reportsColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []*reportDomain.ReportRequest
	for cursor.Next(ctx) {
		var mr mongoReport
		if err := cursor.Decode(&mr); err != nil {
			return nil, err
		}
		reports = append(reports, fromMongoReport(&mr))
	}

	return reports, cursor.Err()
}

// --- Outbox ---

func (r *ReportRepoMongoDB) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.outboxColl.Find(ctx, bson.M{"processed": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []sharedDomain.OutboxEvent
	for cursor.Next(ctx) {
		var mo mongoOutboxEvent
		if err := cursor.Decode(&mo); err != nil {
			return nil, err
		}
		events = append(events, sharedDomain.OutboxEvent{
			ID:            mo.ID,
			AggregateType: mo.AggregateType,
			AggregateID:   mo.AggregateID,
			EventType:     mo.EventType,
			Payload:       mo.Payload,
			CreatedAt:     mo.CreatedAt,
			Processed:     mo.Processed,
		})
	}

	return events, cursor.Err()
}

func (r *ReportRepoMongoDB) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.outboxColl.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"processed": true}},
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox event not found: %s", id)
	}
	return nil
}

// --- Helpers de Mapeo y Conversión ---

func toMongoReport(rep *reportDomain.ReportRequest) *mongoReport {
	return &mongoReport{
		ID: rep.ID, Nome: rep.Nome, Status: string(rep.Status),
		DataCriacao: rep.DataCriacao, DataProcessamento: rep.DataProcessamento,
		Observacoes: rep.Observacoes, Tentativas: rep.Tentativas, Version: rep.Version,
	}
}

func fromMongoReport(mr *mongoReport) *reportDomain.ReportRequest {
	return &reportDomain.ReportRequest{
		ID: mr.ID, Nome: mr.Nome, Status: reportDomain.ReportStatus(mr.Status),
		DataCriacao: mr.DataCriacao, DataProcessamento: mr.DataProcessamento,
		Observacoes: mr.Observacoes, Tentativas: mr.Tentativas, Version: mr.Version,
	}
}

func toMongoOutboxEvent(evt sharedDomain.OutboxEvent) *mongoOutboxEvent {
	return &mongoOutboxEvent{
		ID: evt.ID, AggregateType: evt.AggregateType, AggregateID: evt.AggregateID,
		EventType: evt.EventType, Payload: evt.Payload, CreatedAt: evt.CreatedAt, Processed: false,
	}
}

// Verificación estática
var _ reportDomain.ReportRepository = (*ReportRepoMongoDB)(nil)
