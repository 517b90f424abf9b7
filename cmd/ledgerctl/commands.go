// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	ledger "github.com/luxfi/ledger-transport"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List connected devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ledger.NewLedgerAdminWithConfig(cfg.Transport).ListDevices()
			if err != nil {
				return err
			}
			for i, path := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, path)
			}
			return nil
		},
	}
}

func splitCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "split <hex message>",
		Short: "Print the chunks a message is split into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			if size == 0 {
				size = cfg.Transport.PacketSize
			}
			chunks, err := ledger.Split(byte(cfg.Transport.CommandTag), message, size)
			if err != nil {
				return err
			}
			for _, chunk := range chunks {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(chunk.Bytes()))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "chunk size (default transport.packet_size)")
	return cmd
}

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <hex chunk>...",
		Short: "Reassemble a message from its chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packets := make([][]byte, 0, len(args))
			for i, arg := range args {
				packet, err := hex.DecodeString(arg)
				if err != nil {
					return fmt.Errorf("decode chunk %d: %w", i, err)
				}
				packets = append(packets, packet)
			}
			message, err := ledger.JoinPackets(byte(cfg.Transport.CommandTag), packets)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(message))
			return nil
		},
	}
}

func exchangeCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "exchange <hex apdu>",
		Short: "Send one APDU to a device and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			command, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decode apdu: %w", err)
			}

			device, err := ledger.NewLedgerAdminWithConfig(cfg.Transport).Connect(index)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, device.Close())
			}()

			response, err := device.Exchange(command)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(response))
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "device", 0, "device index as listed by devices")
	return cmd
}
