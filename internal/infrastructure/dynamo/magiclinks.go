package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-magiclink-api/internal/domain"
)

// MagicLinkRepo stores magic-link records keyed by token digest. It is the
// shared-store backend for multi-instance deployments; single instances can
// use the in-memory store instead.
type MagicLinkRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewMagicLinkRepo(client *dynamodb.Client, tableName string) *MagicLinkRepo {
	return &MagicLinkRepo{client: client, tableName: tableName}
}

func (r *MagicLinkRepo) Save(ctx context.Context, digest, email string, expiresAt time.Time) error {
	link := &domain.MagicLink{
		Digest:    digest,
		Email:     email,
		CreatedAt: time.Now().Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
	item, err := attributevalue.MarshalMap(link)
	if err != nil {
		return fmt.Errorf("marshal magic link: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put magic link: %v: %w", err, domain.ErrUpstream)
	}
	return nil
}

// Consume atomically removes the record and returns its email. DeleteItem
// with ReturnValues=ALL_OLD is a single conditional write, so when several
// requests race on the same digest exactly one sees the old item; the rest
// get ErrNotFound. DynamoDB TTL deletion can lag by minutes, so expiry is
// re-checked here rather than trusted to the sweeper.
func (r *MagicLinkRepo) Consume(ctx context.Context, digest string) (string, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          strKey("digest", digest),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return "", fmt.Errorf("consume magic link: %v: %w", err, domain.ErrUpstream)
	}
	if out.Attributes == nil {
		return "", fmt.Errorf("magic link not found: %w", domain.ErrNotFound)
	}
	var link domain.MagicLink
	if err := attributevalue.UnmarshalMap(out.Attributes, &link); err != nil {
		return "", err
	}
	if link.ExpiresAt < time.Now().Unix() {
		return "", fmt.Errorf("magic link expired: %w", domain.ErrNotFound)
	}
	return link.Email, nil
}
