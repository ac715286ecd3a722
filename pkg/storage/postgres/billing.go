/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/billing"
	"github.com/EmbeddedLLM/JamAIBase-sub002/pkg/jamerrors"
)

// GetOrgBalance loads orgID's quota/credit counters. ExternalKeys is left
// empty: the encrypted blob backing it is a separate column, decrypted
// only by a router.Resolver (pkg/router.OrgKeyStore, implemented below),
// never assembled into a plaintext map here.
func (p *Provider) GetOrgBalance(ctx context.Context, orgID string) (billing.OrgBalance, error) {
	var b billing.OrgBalance
	err := p.pool.QueryRow(ctx,
		`SELECT is_oss, credit, credit_grant, ellm_quota, ellm_usage
		 FROM org_balances WHERE org_id = $1`,
		orgID,
	).Scan(&b.IsOSS, &b.Credit, &b.CreditGrant, &b.EllmQuota, &b.EllmUsage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.OrgBalance{}, jamerrors.New(jamerrors.ResourceNotFound, "org %q has no balance record", orgID)
		}
		return billing.OrgBalance{}, fmt.Errorf("postgres: get org balance: %w", err)
	}
	return b, nil
}

// ApplyUsageDeltas adds a billing.Manager's accumulated ellm usage delta
// to orgID's running usage counter and subtracts cost from its credit,
// after its event flush succeeds.
func (p *Provider) ApplyUsageDeltas(ctx context.Context, orgID string, ellmUsageDelta, cost float64) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE org_balances
		 SET ellm_usage = ellm_usage + $2, credit = credit - $3, updated_at = now()
		 WHERE org_id = $1`,
		orgID, ellmUsageDelta, cost,
	)
	if err != nil {
		return fmt.Errorf("postgres: apply usage deltas: %w", err)
	}
	return nil
}

// EncryptedExternalKeys implements router.OrgKeyStore.
func (p *Provider) EncryptedExternalKeys(ctx context.Context, orgID string) ([]byte, bool, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx,
		`SELECT external_keys_encrypted FROM org_balances WHERE org_id = $1`, orgID,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("postgres: load encrypted external keys: %w", err)
	}
	return blob, blob != nil, nil
}

// PutEncryptedExternalKeys stores orgID's sealed external_keys blob,
// upserting an org_balances row if one doesn't already exist.
func (p *Provider) PutEncryptedExternalKeys(ctx context.Context, orgID string, blob []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO org_balances (org_id, external_keys_encrypted)
		 VALUES ($1, $2)
		 ON CONFLICT (org_id) DO UPDATE SET external_keys_encrypted = $2, updated_at = now()`,
		orgID, blob,
	)
	if err != nil {
		return fmt.Errorf("postgres: store encrypted external keys: %w", err)
	}
	return nil
}

// ResetExpiredQuotas implements billing.QuotaResetter: every org whose
// quota_reset_at has elapsed has its ellm usage counter zeroed and its
// reset deadline advanced by one quota_period.
func (p *Provider) ResetExpiredQuotas(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE org_balances
		 SET ellm_usage = 0, quota_reset_at = quota_reset_at + quota_period, updated_at = now()
		 WHERE quota_reset_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: reset expired quotas: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
