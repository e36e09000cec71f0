// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package broadcast announces high-support proposals to a community channel
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/bwmarrin/discordgo"
)

const embedColor = 0x9945ff

// MessageSender is the part of *discordgo.Session used for announcements
type MessageSender interface {
	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

type DiscordAnnouncer struct {
	sender    MessageSender
	channelID string
	logger    *slog.Logger
}

// NewDiscordAnnouncer creates a REST-only bot session for token
func NewDiscordAnnouncer(
	token string,
	channelID string,
	logger *slog.Logger,
) (*DiscordAnnouncer, error) {
	if token == "" || channelID == "" {
		return nil, errors.New("discord token and channel ID are required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return NewDiscordAnnouncerWithSender(session, channelID, logger), nil
}

func NewDiscordAnnouncerWithSender(
	sender MessageSender,
	channelID string,
	logger *slog.Logger,
) *DiscordAnnouncer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DiscordAnnouncer{
		sender:    sender,
		channelID: channelID,
		logger:    logger.With("component", "broadcast"),
	}
}

func (d *DiscordAnnouncer) Announce(
	ctx context.Context,
	proposal *models.Proposal,
) error {
	msg, err := d.sender.ChannelMessageSendEmbed(
		d.channelID,
		proposalEmbed(proposal),
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("send discord announcement: %w", err)
	}
	d.logger.Info(
		"proposal announced",
		"proposal_id", proposal.ID,
		"message_id", msg.ID,
	)
	return nil
}

func proposalEmbed(proposal *models.Proposal) *discordgo.MessageEmbed {
	status := "Passed, distribution pending"
	if proposal.Status == models.ProposalStatusClosedExecuted {
		status = "Passed and distributed"
	}
	ret := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s wants to distribute %s", proposal.SquadName, proposal.TokenName),
		Description: proposal.Reason,
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: status, Inline: true},
			{Name: "Up weight", Value: strconv.FormatInt(proposal.FinalUpVotesWeight, 10), Inline: true},
			{Name: "Voters", Value: strconv.FormatInt(proposal.TotalFinalVoters, 10), Inline: true},
			{Name: "Token contract", Value: proposal.TokenContractAddress},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Proposal " + proposal.ID},
	}
	if proposal.SettledAt != nil {
		ret.Timestamp = proposal.SettledAt.UTC().Format(time.RFC3339)
	}
	return ret
}
